package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-nutri-backend/ratelimit"
)

type fakeAttempts struct {
	calls int
	age   time.Duration
	err   error
}

func (f *fakeAttempts) Prune(_ context.Context, age time.Duration) (int64, error) {
	f.calls++
	f.age = age
	return 3, f.err
}

func TestRunPrunesBoth(t *testing.T) {
	attempts := &fakeAttempts{}
	store := ratelimit.NewMemoryStore()
	_, _, _ = store.Hit(context.Background(), "k", time.Nanosecond)
	time.Sleep(time.Millisecond)

	h := &Housekeeper{Attempts: attempts, Windows: store}
	h.Run(context.Background())

	assert.Equal(t, 1, attempts.calls)
	assert.Equal(t, AttemptRetention, attempts.age)
	assert.Equal(t, 0, store.Len())
}

func TestRunToleratesErrorsAndNilPruners(t *testing.T) {
	attempts := &fakeAttempts{err: errors.New("db down")}
	h := &Housekeeper{Attempts: attempts}
	assert.NotPanics(t, func() { h.Run(context.Background()) })
	assert.Equal(t, 1, attempts.calls)

	assert.NotPanics(t, func() { (&Housekeeper{}).Run(context.Background()) })
}

func TestStartSchedulesHourlyJob(t *testing.T) {
	h := &Housekeeper{Attempts: &fakeAttempts{}}
	s, err := h.Start()
	require.NoError(t, err)
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.Len(t, s.Jobs(), 1)
}
