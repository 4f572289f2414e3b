// security.go - Login attempt audit, account lockout and suspicious login checks

package security

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"go-nutri-backend/models"
)

// Lockout policy
const (
	MaxFailedAttempts = 5
	LockWindow        = 15 * time.Minute
)

// Failure reasons recorded on attempts
const (
	ReasonLocked             = "account_locked"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonInvalidPassword    = "invalid_password"
	ReasonInvalid2FA         = "invalid_2fa"
)

type Guard struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db, now: time.Now}
}

// Attempt describes one login try.
type Attempt struct {
	UserID    *uint
	Email     string
	IP        string
	UserAgent string
	Success   bool
	Reason    string
}

// Record stores an attempt.
func (g *Guard) Record(ctx context.Context, a Attempt) error {
	return g.db.WithContext(ctx).Create(&models.LoginAttempt{
		UserID:        a.UserID,
		Email:         a.Email,
		IPAddress:     a.IP,
		UserAgent:     a.UserAgent,
		Success:       a.Success,
		FailureReason: a.Reason,
		CreatedAt:     g.now(),
	}).Error
}

type LockStatus struct {
	Locked         bool       `json:"locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	FailedAttempts int64      `json:"failed_attempts"`
}

// Status reports whether email is locked: MaxFailedAttempts failures inside
// LockWindow lock it for another LockWindow.
func (g *Guard) Status(ctx context.Context, email string) (LockStatus, error) {
	now := g.now()
	var failed int64
	err := g.db.WithContext(ctx).Model(&models.LoginAttempt{}).
		Where("email = ? AND success = ? AND created_at >= ?", email, false, now.Add(-LockWindow)).
		Count(&failed).Error
	if err != nil {
		return LockStatus{}, err
	}
	st := LockStatus{FailedAttempts: failed}
	if failed >= MaxFailedAttempts {
		until := now.Add(LockWindow)
		st.Locked = true
		st.LockedUntil = &until
	}
	return st, nil
}

// Suspicion factors
const (
	FactorNewIP          = "new_ip"
	FactorNewDevice      = "new_device"
	FactorUnusualTime    = "unusual_time"
	FactorRecentFailures = "recent_failures"
)

// Suspicious compares a successful login with the user's last 30 days of
// successful logins. Two or more factors make it suspicious. The first
// login ever is never suspicious.
func (g *Guard) Suspicious(ctx context.Context, userID uint, ip, userAgent string) ([]string, bool, error) {
	now := g.now()
	var history []models.LoginAttempt
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND success = ? AND created_at >= ?", userID, true, now.AddDate(0, 0, -30)).
		Order("created_at desc").Limit(50).
		Find(&history).Error
	if err != nil || len(history) == 0 {
		return nil, false, err
	}

	var factors []string
	knownIP, similarUA, usualHour := false, false, false
	for _, h := range history {
		if h.IPAddress == ip {
			knownIP = true
		}
		if Similarity(userAgent, h.UserAgent) > 0.7 {
			similarUA = true
		}
		if abs(now.Hour()-h.CreatedAt.Hour()) <= 3 {
			usualHour = true
		}
	}
	if !knownIP {
		factors = append(factors, FactorNewIP)
	}
	if !similarUA {
		factors = append(factors, FactorNewDevice)
	}
	if !usualHour {
		factors = append(factors, FactorUnusualTime)
	}

	var failures int64
	err = g.db.WithContext(ctx).Model(&models.LoginAttempt{}).
		Where("user_id = ? AND success = ? AND created_at >= ?", userID, false, now.Add(-2*time.Hour)).
		Count(&failures).Error
	if err != nil {
		return nil, false, err
	}
	if failures >= 3 {
		factors = append(factors, FactorRecentFailures)
	}
	return factors, len(factors) >= 2, nil
}

// AttemptFilter narrows an audit listing. Zero values do not filter.
type AttemptFilter struct {
	Email   string
	UserID  uint
	Success *bool
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

// Attempts returns one page of attempts, newest first, and the total match count.
func (g *Guard) Attempts(ctx context.Context, f AttemptFilter) ([]models.LoginAttempt, int64, error) {
	q := g.db.WithContext(ctx).Model(&models.LoginAttempt{})
	if f.Email != "" {
		q = q.Where("email = ?", f.Email)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Success != nil {
		q = q.Where("success = ?", *f.Success)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", f.Until)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := []models.LoginAttempt{}
	err := q.Order("created_at desc").Order("id desc").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

// Overview summarizes recent login activity for the admin security page.
type Overview struct {
	Attempts24h       int64            `json:"login_attempts_24h"`
	Failed24h         int64            `json:"failed_logins_24h"`
	FailureRate       float64          `json:"failure_rate"` // percent, one decimal
	FailuresByReason  map[string]int64 `json:"failures_by_reason"`
	LockedAccounts    []string         `json:"locked_accounts"`
	TotalUsers        int64            `json:"total_users"`
	UsersWith2FA      int64            `json:"users_with_2fa"`
	TwoFactorAdoption float64          `json:"two_factor_adoption"` // percent, one decimal
}

// Overview counts the last 24 hours of attempts and lists the emails
// currently locked out.
func (g *Guard) Overview(ctx context.Context) (Overview, error) {
	now := g.now()
	db := g.db.WithContext(ctx)
	ov := Overview{FailuresByReason: map[string]int64{}, LockedAccounts: []string{}}

	day := db.Model(&models.LoginAttempt{}).Where("created_at >= ?", now.Add(-24*time.Hour))
	if err := day.Session(&gorm.Session{}).Count(&ov.Attempts24h).Error; err != nil {
		return ov, err
	}
	var reasons []struct {
		FailureReason string
		N             int64
	}
	err := day.Session(&gorm.Session{}).Select("failure_reason, count(*) as n").
		Where("success = ?", false).Group("failure_reason").Scan(&reasons).Error
	if err != nil {
		return ov, err
	}
	for _, r := range reasons {
		ov.FailuresByReason[r.FailureReason] = r.N
		ov.Failed24h += r.N
	}
	if ov.Attempts24h > 0 {
		ov.FailureRate = percent(ov.Failed24h, ov.Attempts24h)
	}

	err = db.Model(&models.LoginAttempt{}).
		Where("success = ? AND created_at >= ?", false, now.Add(-LockWindow)).
		Group("email").Having("count(*) >= ?", MaxFailedAttempts).
		Order("email").Pluck("email", &ov.LockedAccounts).Error
	if err != nil {
		return ov, err
	}

	if err := db.Model(&models.User{}).Count(&ov.TotalUsers).Error; err != nil {
		return ov, err
	}
	if err := db.Model(&models.TwoFactorAuth{}).Where("is_enabled = ?", true).Count(&ov.UsersWith2FA).Error; err != nil {
		return ov, err
	}
	if ov.TotalUsers > 0 {
		ov.TwoFactorAdoption = percent(ov.UsersWith2FA, ov.TotalUsers)
	}
	return ov, nil
}

func percent(part, whole int64) float64 {
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

// Prune deletes attempts older than age and returns how many went away.
func (g *Guard) Prune(ctx context.Context, age time.Duration) (int64, error) {
	res := g.db.WithContext(ctx).Where("created_at < ?", g.now().Add(-age)).Delete(&models.LoginAttempt{})
	return res.RowsAffected, res.Error
}

// Similarity is 1 minus the edit distance over the longer length.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1
	}
	return float64(longer-levenshtein(ra, rb)) / float64(longer)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
