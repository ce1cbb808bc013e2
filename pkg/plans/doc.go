// Package plans holds the subscription plan catalog and resolves the numeric
// ceiling a plan grants for each metered resource.
//
// Plans are immutable catalog entries. They are created by seeding (code or a
// YAML file) and are never mutated by request traffic, so a Catalog is safe
// for concurrent use once loaded.
//
// Key concepts:
//
//   - Metric: a metered resource. The set is closed; every metric is either a
//     gauge (a live count such as active surveys) or cumulative within a
//     tracking period (such as completed responses).
//   - Feature: a boolean capability flag (API access, export, ...).
//   - Unlimited: any negative stored limit means "no ceiling".
//
// Basic usage:
//
//	catalog, err := plans.NewCatalog(ctx, plans.NewInMemSource(
//	    plans.Plan{
//	        ID:   "pro_monthly",
//	        Tier: plans.TierPro,
//	        Limits: map[plans.Metric]int64{
//	            plans.MetricActiveSurveys:      50,
//	            plans.MetricCompletedResponses: 5000,
//	            plans.MetricAPICalls:           plans.Unlimited,
//	        },
//	        Features: []plans.Feature{plans.FeatureExport, plans.FeatureAPIAccess},
//	    },
//	))
//
//	plan, err := catalog.Get("pro_monthly")
//	limit, unlimited := plans.LimitFor(plan, plans.MetricCompletedResponses)
package plans
