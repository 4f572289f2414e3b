// user_test.go - Automated tests for registration, login and the second factor
// Run with: go test ./...

package handlers

import (
	"context"  // Service calls
	"net/http" // HTTP status codes
	"strings"  // Email case
	"testing"  // Go's testing package
	"time"     // TOTP clock

	"github.com/gin-gonic/gin"            // Gin web framework
	"github.com/pquerna/otp/totp"         // Authenticator codes
	"github.com/stretchr/testify/assert"  // For assertions
	"github.com/stretchr/testify/require" // Fatal assertions

	"go-nutri-backend/models"    // Roles and audit rows
	"go-nutri-backend/ratelimit" // Production presets
	"go-nutri-backend/security"  // Lock threshold
)

// TestRegisterAndLogin tests user registration and login
func TestRegisterAndLogin(t *testing.T) {
	env := newEnv(t)
	email := env.fake.Internet().Email()

	// --- Test registration ---
	w := env.do(http.MethodPost, "/register", "", RegisterInput{Name: "Ana Souza", Email: email, Password: "testpass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg struct {
		User models.User `json:"user"`
	}
	decode(t, w, &reg)
	assert.Equal(t, models.RoleNutritionist, reg.User.Role) // default role
	assert.NotContains(t, w.Body.String(), "testpass")

	// --- Duplicate email, different case ---
	w = env.do(http.MethodPost, "/register", "", RegisterInput{Name: "Ana", Email: strings.ToUpper(email), Password: "testpass"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// --- Test login ---
	w = env.do(http.MethodPost, "/login", "", LoginInput{Email: email, Password: "testpass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, w, &login)
	assert.NotEmpty(t, login.Token)

	w = env.do(http.MethodGet, "/api/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), email)

	// --- Test login with wrong password ---
	w = env.do(http.MethodPost, "/login", "", LoginInput{Email: email, Password: "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code) // Should be unauthorized

	var attempts []models.LoginAttempt
	require.NoError(t, env.db.Order("id").Find(&attempts).Error)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, security.ReasonInvalidPassword, attempts[1].FailureReason)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	env := newEnv(t)
	w := env.do(http.MethodPost, "/register", "", RegisterInput{
		Name: "Mallory", Email: env.fake.Internet().Email(), Password: "testpass", Role: models.RoleAdmin,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/register", "", RegisterInput{Name: "Short", Email: env.fake.Internet().Email(), Password: "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterFailsWhenEmailLookupFails(t *testing.T) {
	env := newEnv(t)
	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.do(http.MethodPost, "/register", "", RegisterInput{Name: "Ana", Email: env.fake.Internet().Email(), Password: "testpass"})
	assert.Equal(t, http.StatusInternalServerError, w.Code) // not a 201 for an unchecked email
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	env := newEnv(t)
	u, _ := env.user(models.RoleNutritionist)

	for i := 0; i < security.MaxFailedAttempts; i++ {
		w := env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// Even the right password is refused while locked
	w := env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: testPassword})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), "locked_until")

	var locked int64
	env.db.Model(&models.LoginAttempt{}).Where("failure_reason = ?", security.ReasonLocked).Count(&locked)
	assert.Equal(t, int64(1), locked)
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newEnv(t)
	w := env.do(http.MethodPost, "/login", "", LoginInput{Email: "ghost@example.com", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var a models.LoginAttempt
	require.NoError(t, env.db.First(&a).Error)
	assert.Nil(t, a.UserID)
	assert.Equal(t, security.ReasonInvalidCredentials, a.FailureReason)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	env := newEnv(t)
	u, token := env.user(models.RoleNutritionist)

	// STEP 1: Enroll
	w := env.do(http.MethodPost, "/api/2fa/setup", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var setup struct {
		Secret      string   `json:"secret"`
		BackupCodes []string `json:"backup_codes"`
	}
	decode(t, w, &setup)
	require.NotEmpty(t, setup.Secret)
	require.NotEmpty(t, setup.BackupCodes)

	w = env.do(http.MethodPost, "/api/2fa/enable", token, gin.H{"code": "000000x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	w = env.do(http.MethodPost, "/api/2fa/enable", token, gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// STEP 2: Password alone yields only a temp token
	w = env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		Requires2FA bool   `json:"requires_2fa"`
		TempToken   string `json:"temp_token"`
		Token       string `json:"token"`
	}
	decode(t, w, &first)
	assert.True(t, first.Requires2FA)
	assert.Empty(t, first.Token)

	// The temp token does not open the API
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", first.TempToken, nil).Code)

	// STEP 3: Wrong code, then a backup code
	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: first.TempToken, Code: "123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: first.TempToken, Code: setup.BackupCodes[0], Backup: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done struct {
		Token string `json:"token"`
	}
	decode(t, w, &done)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/me", done.Token, nil).Code)

	// Backup codes are single use
	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: first.TempToken, Code: setup.BackupCodes[0], Backup: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// STEP 4: Disabling needs the password
	w = env.do(http.MethodPost, "/api/2fa/disable", token, gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/2fa/disable", token, gin.H{"password": testPassword})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: testPassword})
	assert.Contains(t, w.Body.String(), `"token"`)
}

func TestSecondFactorRespectsLockout(t *testing.T) {
	env := newEnv(t)
	u, token := env.user(models.RoleNutritionist)
	secret, backup := env.enrollTwoFactor(token)
	temp := env.tempToken(u.Email)

	// Wrong codes count towards the same lock as wrong passwords
	for i := 0; i < security.MaxFailedAttempts; i++ {
		w := env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: temp, Code: "000000"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// A valid code no longer opens a session
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	w := env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: temp, Code: code})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), "locked_until")
	assert.NotContains(t, w.Body.String(), `"token"`)

	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: temp, Code: backup[0], Backup: true})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: testPassword})
	assert.Equal(t, http.StatusLocked, w.Code)

	var locked int64
	env.db.Model(&models.LoginAttempt{}).Where("failure_reason = ? AND user_id = ?", security.ReasonLocked, u.ID).Count(&locked)
	assert.Equal(t, int64(2), locked)

	// The refused backup code was not spent
	st, err := env.api.TwoFactor.Status(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, len(backup), st.BackupCodesLeft)
}

func TestRegenerateBackupCodes(t *testing.T) {
	env := newEnv(t)
	u, token := env.user(models.RoleNutritionist)

	// Nothing to regenerate before enrolling
	w := env.do(http.MethodPost, "/api/2fa/backup-codes", token, gin.H{"code": "123456"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	secret, old := env.enrollTwoFactor(token)
	w = env.do(http.MethodPost, "/api/2fa/backup-codes", token, gin.H{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/2fa/backup-codes", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	w = env.do(http.MethodPost, "/api/2fa/backup-codes", token, gin.H{"code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		BackupCodes []string `json:"backup_codes"`
	}
	decode(t, w, &out)
	require.Len(t, out.BackupCodes, len(old))

	// Only the new set logs in
	temp := env.tempToken(u.Email)
	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: temp, Code: old[0], Backup: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/login/2fa", "", SecondFactorInput{TempToken: temp, Code: out.BackupCodes[0], Backup: true})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMeIncludesPatientProfile(t *testing.T) {
	env := newEnv(t)
	n, _ := env.user(models.RoleNutritionist)
	p, token := env.patient(n.ID)

	w := env.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Patient models.Patient `json:"patient"`
	}
	decode(t, w, &me)
	assert.Equal(t, p.ID, me.Patient.ID)
	assert.Equal(t, n.ID, me.Patient.NutritionistID)
}

func TestRegisterRateLimited(t *testing.T) {
	env := newEnv(t)
	env.api.Limits = NewLimits(ratelimit.NewMemoryStore())
	env.router = newRouter(env.api)

	for i := 0; i < 3; i++ {
		w := env.do(http.MethodPost, "/register", "", RegisterInput{Name: "N", Email: env.fake.Internet().Email(), Password: "testpass"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := env.do(http.MethodPost, "/register", "", RegisterInput{Name: "N", Email: env.fake.Internet().Email(), Password: "testpass"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
