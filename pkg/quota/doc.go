// Package quota is the single decision point for gated actions.
//
// Validator.Validate resolves the team's subscription and plan, maps the
// action to the metric and feature flag it consumes, reads the current
// tracking row (creating it lazily when the period has just started) and
// answers admit or deny with a decision Code and a Usage block:
//
//	res, err := validator.Validate(ctx, teamID, quota.ActionSubmitResponse)
//	if err != nil {
//		return err // storage or catalog fault, never a silent admit
//	}
//	if !res.Admitted {
//		return upgradeRequired(res)
//	}
//	// write the response, then:
//	_, err = tracker.Increment(ctx, teamID, res.Metric, 1, time.Now())
//
// Admission is advisory. Consuming quota is the caller's separate
// Increment after its own write succeeds.
package quota
