// Package usage keeps per-team, per-metric consumption counters for half-open
// tracking periods and is the only writer of those counters.
//
// A Tracker wraps a Store and adds argument checks, bounded retries on
// ErrStorageUnavailable and logging. Three stores are provided:
//
//   - MemoryStore, guarded by a mutex, for tests and single-process setups.
//   - PGStore, where increments are a single UPDATE ... RETURNING inside a
//     transaction and period creation is insert-on-absence under the
//     (team_id, metric, period_start) unique key.
//   - RedisStore, where increments and period creation run as Lua scripts.
//
// Periods are [PeriodStart, PeriodEnd). A row covering an instant is found
// with CurrentUsage; rows are never deleted.
//
//	tracker := usage.NewTracker(usage.NewPGStore(pool), usage.WithLogger(log))
//	n, err := tracker.Increment(ctx, teamID, plans.MetricCompletedResponses, 1, time.Now())
package usage
