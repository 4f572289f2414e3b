package security

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-nutri-backend/database"
)

func setupGuard(t *testing.T, now time.Time) *Guard {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "security.db"), "")
	require.NoError(t, err)
	g := NewGuard(db)
	g.now = func() time.Time { return now }
	return g
}

func uid(n uint) *uint { return &n }

func TestStatusLocksAfterFiveFailures(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g := setupGuard(t, now)
	ctx := context.Background()

	for i := 0; i < MaxFailedAttempts-1; i++ {
		require.NoError(t, g.Record(ctx, Attempt{Email: "a@x.com", Reason: ReasonInvalidPassword}))
	}
	st, err := g.Status(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.Equal(t, int64(4), st.FailedAttempts)

	require.NoError(t, g.Record(ctx, Attempt{Email: "a@x.com", Reason: ReasonInvalidPassword}))
	st, err = g.Status(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, st.Locked)
	require.NotNil(t, st.LockedUntil)
	assert.Equal(t, now.Add(LockWindow), *st.LockedUntil)

	// the window slides
	g.now = func() time.Time { return now.Add(LockWindow + time.Second) }
	st, err = g.Status(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, st.Locked)

	other, _ := g.Status(ctx, "b@x.com")
	assert.False(t, other.Locked)
}

func TestSuccessDoesNotCountTowardsLock(t *testing.T) {
	g := setupGuard(t, time.Now())
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, g.Record(ctx, Attempt{Email: "ok@x.com", Success: true}))
	}
	st, _ := g.Status(ctx, "ok@x.com")
	assert.False(t, st.Locked)
}

func TestSuspicious(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	g := setupGuard(t, base)
	ctx := context.Background()
	ua := "Mozilla/5.0 (X11; Linux x86_64) Firefox/123.0"

	factors, suspicious, err := g.Suspicious(ctx, 1, "1.1.1.1", ua)
	require.NoError(t, err)
	assert.False(t, suspicious, "first login has no history")
	assert.Empty(t, factors)

	require.NoError(t, g.Record(ctx, Attempt{UserID: uid(1), Email: "u@x.com", IP: "1.1.1.1", UserAgent: ua, Success: true}))

	g.now = func() time.Time { return base.Add(24 * time.Hour) }
	factors, suspicious, err = g.Suspicious(ctx, 1, "1.1.1.1", "Mozilla/5.0 (X11; Linux x86_64) Firefox/124.0")
	require.NoError(t, err)
	assert.False(t, suspicious)
	assert.Empty(t, factors)

	// new IP and device at 22h
	g.now = func() time.Time { return base.Add(24*time.Hour + 13*time.Hour) }
	factors, suspicious, err = g.Suspicious(ctx, 1, "9.9.9.9", "curl/8.0")
	require.NoError(t, err)
	assert.True(t, suspicious)
	assert.Equal(t, []string{FactorNewIP, FactorNewDevice, FactorUnusualTime}, factors)

	// only a new IP is not enough
	g.now = func() time.Time { return base.Add(48 * time.Hour) }
	factors, suspicious, _ = g.Suspicious(ctx, 1, "9.9.9.9", ua)
	assert.False(t, suspicious)
	assert.Equal(t, []string{FactorNewIP}, factors)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Record(ctx, Attempt{UserID: uid(1), Email: "u@x.com", Reason: ReasonInvalidPassword}))
	}
	factors, suspicious, _ = g.Suspicious(ctx, 1, "9.9.9.9", ua)
	assert.True(t, suspicious)
	assert.Equal(t, []string{FactorNewIP, FactorRecentFailures}, factors)
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	g := setupGuard(t, now.AddDate(0, 0, -40))
	ctx := context.Background()
	require.NoError(t, g.Record(ctx, Attempt{Email: "old@x.com"}))
	g.now = func() time.Time { return now }
	require.NoError(t, g.Record(ctx, Attempt{Email: "new@x.com"}))

	n, err := g.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.InDelta(t, 2.0/3.0, Similarity("abc", "abd"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 4.0/6.0, Similarity("kitt", "kitten"), 1e-9)
}

func TestAttemptsPagesNewestFirst(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g := setupGuard(t, now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.now = func() time.Time { return now.Add(time.Duration(i) * time.Minute) }
		require.NoError(t, g.Record(ctx, Attempt{Email: "a@x.com", UserID: uid(1), Success: i%2 == 0}))
	}
	require.NoError(t, g.Record(ctx, Attempt{Email: "b@x.com", Reason: ReasonInvalidCredentials}))

	list, total, err := g.Attempts(ctx, AttemptFilter{Email: "a@x.com", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, list, 2)
	assert.True(t, now.Add(4*time.Minute).Equal(list[0].CreatedAt))

	list, _, err = g.Attempts(ctx, AttemptFilter{Email: "a@x.com", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	failed := false
	_, total, err = g.Attempts(ctx, AttemptFilter{UserID: 1, Success: &failed, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = g.Attempts(ctx, AttemptFilter{Since: now.Add(3 * time.Minute), Until: now.Add(4 * time.Minute), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestOverview(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g := setupGuard(t, now)
	ctx := context.Background()

	for i := 0; i < MaxFailedAttempts; i++ {
		require.NoError(t, g.Record(ctx, Attempt{Email: "locked@x.com", Reason: ReasonInvalidPassword}))
	}
	require.NoError(t, g.Record(ctx, Attempt{Email: "other@x.com", Reason: ReasonInvalid2FA}))
	for i := 0; i < 4; i++ {
		require.NoError(t, g.Record(ctx, Attempt{Email: "ok@x.com", Success: true}))
	}
	g.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, g.Record(ctx, Attempt{Email: "old@x.com", Reason: ReasonInvalidPassword}))
	g.now = func() time.Time { return now }

	ov, err := g.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), ov.Attempts24h)
	assert.Equal(t, int64(6), ov.Failed24h)
	assert.Equal(t, 60.0, ov.FailureRate)
	assert.Equal(t, map[string]int64{ReasonInvalidPassword: 5, ReasonInvalid2FA: 1}, ov.FailuresByReason)
	assert.Equal(t, []string{"locked@x.com"}, ov.LockedAccounts)
	assert.Zero(t, ov.TotalUsers)
	assert.Zero(t, ov.TwoFactorAdoption)
}
