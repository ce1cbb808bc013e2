// Package subscription models the customer subscription a team holds and the
// store it is read from.
//
// The metering engine only ever reads subscriptions: it needs the plan, the
// lifecycle status and the current billing period. Writes come from the
// billing collaborator through Sync, which applies normalized provider
// events (see PaddleParser) to a Store.
//
// Each team has at most one subscription, so the team ID is the primary key.
//
// Basic usage:
//
//	store := subscription.NewPGStore(pool)
//	sub, err := store.Get(ctx, teamID)
//	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
//	    // team never subscribed
//	}
//	if sub.IsActionable() && !sub.Lapsed(time.Now()) {
//	    // plan limits apply
//	}
package subscription
