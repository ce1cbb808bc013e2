package plans

import "errors"

var (
	ErrPlanNotFound             = errors.New("plans.errors.plan_not_found")
	ErrInvalidPlanConfiguration = errors.New("plans.errors.invalid_plan_configuration")
	ErrFailedToLoadPlans        = errors.New("plans.errors.failed_to_load_plans")
	ErrFailedToSeedPlans        = errors.New("plans.errors.failed_to_seed_plans")
	ErrUnknownMetric            = errors.New("plans.errors.unknown_metric")
	ErrUnknownFeature           = errors.New("plans.errors.unknown_feature")
)
