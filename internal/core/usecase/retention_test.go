package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

func TestRetentionCleanupCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	created := []time.Time{now.AddDate(0, 0, -10), now.AddDate(0, 0, -5), now.AddDate(0, 0, -1)}

	var gotCutoff time.Time
	store := &stubStore{deleteBeforeFn: func(_ context.Context, cutoff time.Time) (int64, error) {
		gotCutoff = cutoff
		var n int64
		for _, c := range created {
			if c.Before(cutoff) {
				n++
			}
		}
		return n, nil
	}}
	logger, hook := logtest.NewNullLogger()
	metrics := &metricsSpy{}
	svc := NewRetentionService(store, clock.Fixed(now), metrics, logger)

	res, err := svc.Cleanup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)
	assert.Equal(t, now.Add(-7*24*time.Hour), gotCutoff)
	assert.Equal(t, gotCutoff, res.Cutoff)
	assert.Equal(t, []int64{1}, metrics.cleanups)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, int64(1), hook.LastEntry().Data["deleted"])
}

func TestRetentionCleanupRejectsNonPositiveDays(t *testing.T) {
	store := &stubStore{}
	svc := NewRetentionService(store, nil, nil, nil)

	for _, days := range []int{0, -3} {
		_, err := svc.Cleanup(context.Background(), days)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Zero(t, store.calls)
}

func TestRetentionCleanupStorageFailure(t *testing.T) {
	store := &stubStore{deleteBeforeFn: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("locked")
	}}
	logger, hook := logtest.NewNullLogger()
	svc := NewRetentionService(store, nil, nil, logger)

	_, err := svc.Cleanup(context.Background(), 30)
	require.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "action log cleanup failed", hook.LastEntry().Message)
}
