package quota

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

var printer = message.NewPrinter(language.English)

func limitMessage(metric plans.Metric, u Usage) string {
	return printer.Sprintf("%d of %d %s used", u.Current, u.Limit, metric.Label())
}

func expiredMessage(end time.Time) string {
	return printer.Sprintf("subscription period ended on %s", end.UTC().Format("Jan 2, 2006"))
}

func featureMessage(f plans.Feature) string {
	return printer.Sprintf("plan does not include %s", featureLabel(f))
}

func featureLabel(f plans.Feature) string {
	switch f {
	case plans.FeatureRemoveBranding:
		return "branding removal"
	case plans.FeatureAPIAccess:
		return "API access"
	case plans.FeatureExport:
		return "response exports"
	case plans.FeaturePublicPages:
		return "public pages"
	default:
		return string(f)
	}
}

const (
	msgNoSubscription = "no active subscription"
	msgInvalidPlan    = "subscription plan is not available"
)
