package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		_, err := store.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("save and get", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := validSubscription()
		require.NoError(t, store.Save(ctx, sub))

		got, err := store.Get(ctx, sub.TeamID)
		require.NoError(t, err)
		assert.Equal(t, sub.PlanID, got.PlanID)
		assert.Equal(t, sub.CurrentPeriodStart, got.CurrentPeriodStart)
	})

	t.Run("save rejects invalid", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := validSubscription()
		sub.PlanID = ""
		assert.ErrorIs(t, store.Save(ctx, sub), subscription.ErrInvalidSubscription)
	})

	t.Run("list actionable filters by interval and status", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()

		yearlyActive := validSubscription()
		yearlyTrial := validSubscription()
		yearlyTrial.Status = subscription.StatusTrialing
		yearlyCanceled := validSubscription()
		yearlyCanceled.Status = subscription.StatusCanceled
		monthly := validSubscription()
		monthly.Interval = subscription.IntervalMonthly

		for _, s := range []*subscription.Subscription{yearlyActive, yearlyTrial, yearlyCanceled, monthly} {
			require.NoError(t, store.Save(ctx, s))
		}

		got, err := store.ListActionable(ctx, subscription.IntervalYearly)
		require.NoError(t, err)
		require.Len(t, got, 2)

		ids := []uuid.UUID{got[0].TeamID, got[1].TeamID}
		assert.ElementsMatch(t, []uuid.UUID{yearlyActive.TeamID, yearlyTrial.TeamID}, ids)
	})
}
