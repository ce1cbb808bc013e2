package quota

import (
	"fmt"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Action is a gated operation a caller asks permission for.
type Action string

const (
	ActionCreateSurvey      Action = "create_survey"
	ActionSubmitResponse    Action = "submit_response"
	ActionCallAPI           Action = "call_api"
	ActionExportResponses   Action = "export_responses"
	ActionCreateProject     Action = "create_project"
	ActionPublishPublicPage Action = "publish_public_page"
	ActionRemoveBranding    Action = "remove_branding"
)

// Actions returns the closed set of actions.
func Actions() []Action {
	return []Action{
		ActionCreateSurvey,
		ActionSubmitResponse,
		ActionCallAPI,
		ActionExportResponses,
		ActionCreateProject,
		ActionPublishPublicPage,
		ActionRemoveBranding,
	}
}

// ParseAction converts a raw string to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, _, ok := a.Requirement(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Requirement returns the metric the action consumes and the feature flag it
// needs. Either may be empty; ok is false for actions outside the closed set.
func (a Action) Requirement() (metric plans.Metric, feature plans.Feature, ok bool) {
	switch a {
	case ActionCreateSurvey:
		return plans.MetricActiveSurveys, "", true
	case ActionSubmitResponse:
		return plans.MetricCompletedResponses, "", true
	case ActionCallAPI:
		return plans.MetricAPICalls, plans.FeatureAPIAccess, true
	case ActionExportResponses:
		return plans.MetricExports, plans.FeatureExport, true
	case ActionCreateProject:
		return plans.MetricProjects, "", true
	case ActionPublishPublicPage:
		return "", plans.FeaturePublicPages, true
	case ActionRemoveBranding:
		return "", plans.FeatureRemoveBranding, true
	default:
		return "", "", false
	}
}
