package plans

import "fmt"

// Metric is a metered resource type.
type Metric string

const (
	MetricActiveSurveys      Metric = "active_surveys"
	MetricCompletedResponses Metric = "completed_responses"
	MetricAPICalls           Metric = "api_calls"
	MetricExports            Metric = "exports"
	MetricProjects           Metric = "projects"
)

// Metrics returns every known metric in a stable order.
func Metrics() []Metric {
	return []Metric{
		MetricActiveSurveys,
		MetricCompletedResponses,
		MetricAPICalls,
		MetricExports,
		MetricProjects,
	}
}

// Kind describes how a metric accumulates.
type Kind uint8

const (
	// KindCumulative counters start at zero for every tracking period.
	KindCumulative Kind = iota + 1
	// KindGauge counters mirror a live count and are seeded from it.
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindCumulative:
		return "cumulative"
	case KindGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// Kind returns the accumulation kind of the metric.
// Panics on a metric outside the closed set.
func (m Metric) Kind() Kind {
	switch m {
	case MetricActiveSurveys, MetricProjects:
		return KindGauge
	case MetricCompletedResponses, MetricAPICalls, MetricExports:
		return KindCumulative
	default:
		panic(fmt.Sprintf("plans: unknown metric %q", string(m)))
	}
}

// Valid reports whether m belongs to the closed metric set.
func (m Metric) Valid() bool {
	switch m {
	case MetricActiveSurveys, MetricProjects,
		MetricCompletedResponses, MetricAPICalls, MetricExports:
		return true
	}
	return false
}

// IsGauge is shorthand for m.Kind() == KindGauge.
func (m Metric) IsGauge() bool {
	return m.Kind() == KindGauge
}

// Label is the human readable plural name used in upgrade messages.
func (m Metric) Label() string {
	switch m {
	case MetricActiveSurveys:
		return "active surveys"
	case MetricCompletedResponses:
		return "completed responses"
	case MetricAPICalls:
		return "API calls"
	case MetricExports:
		return "exports"
	case MetricProjects:
		return "projects"
	default:
		return string(m)
	}
}

// ParseMetric converts a raw string to a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Unlimited represents a resource with no ceiling (-1 chosen for SQL compatibility).
// Any negative stored limit is treated the same way.
const Unlimited int64 = -1

// Tier is the enumerated plan tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// Feature is a boolean capability flag granted by a plan.
type Feature string

const (
	FeatureRemoveBranding Feature = "remove_branding"
	FeatureAPIAccess      Feature = "api_access"
	FeatureExport         Feature = "export"
	FeaturePublicPages    Feature = "public_pages"
)
