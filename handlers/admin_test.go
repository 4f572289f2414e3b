// admin_test.go - Tests for the admin messaging pause and system status
// This file verifies that admins can pause messaging and that senders are blocked meanwhile

package handlers

import (
	"net/http" // HTTP status codes
	"strings"  // Email case
	"testing"  // Go's testing package

	"github.com/gin-gonic/gin"            // Gin web framework
	"github.com/stretchr/testify/assert"  // For assertions
	"github.com/stretchr/testify/require" // Fatal assertions

	"go-nutri-backend/foods"    // Search results
	"go-nutri-backend/ibge"     // Import payload
	"go-nutri-backend/models"   // Roles
	"go-nutri-backend/security" // Overview payload
)

// TestAdminPauseMessaging - Tests the pause and resume cycle
func TestAdminPauseMessaging(t *testing.T) {
	// STEP 1: Setup test environment
	env := newEnv(t)
	admin, adminToken := env.user(models.RoleAdmin)
	n, nToken := env.user(models.RoleNutritionist)
	p, _ := env.patient(n.ID)

	// STEP 2: Reason is required
	w := env.do(http.MethodPost, "/admin/messaging/pause", adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// STEP 3: Pause
	w = env.do(http.MethodPost, "/admin/messaging/pause", adminToken, gin.H{"reason": "Scheduled maintenance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paused map[string]interface{}
	decode(t, w, &paused)
	assert.Equal(t, "Scheduled maintenance", paused["reason"])
	assert.Equal(t, admin.Email, paused["paused_by"])

	// STEP 4: Sending is refused with the reason
	w = env.do(http.MethodPost, "/api/messages", nToken, gin.H{"recipient_id": p.UserID, "content": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Scheduled maintenance")

	// STEP 5: Status shows the pause
	w = env.do(http.MethodGet, "/admin/status", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Messaging MessagingState         `json:"messaging"`
		Realtime  map[string]int         `json:"realtime"`
		Bridge    map[string]interface{} `json:"bridge"`
	}
	decode(t, w, &status)
	assert.True(t, status.Messaging.Paused)
	assert.Equal(t, admin.Email, status.Messaging.By)
	assert.Equal(t, 0, status.Realtime["online_users"])
	assert.Equal(t, false, status.Bridge["enabled"])

	// STEP 6: Resume and send again
	w = env.do(http.MethodPost, "/admin/messaging/resume", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, "/api/messages", nToken, gin.H{"recipient_id": p.UserID, "content": "hello"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.False(t, env.api.Messaging.State().Paused)
}

// TestNonAdminAccess - Non-admins get 403, anonymous callers 401
func TestNonAdminAccess(t *testing.T) {
	env := newEnv(t)
	_, nToken := env.user(models.RoleNutritionist)

	w := env.do(http.MethodPost, "/admin/messaging/pause", nToken, gin.H{"reason": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodGet, "/admin/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.api.Messaging.State().Paused)
}

// TestAdminRoleReadFromDatabase - A demoted admin loses access even with an old token
func TestAdminRoleReadFromDatabase(t *testing.T) {
	env := newEnv(t)
	admin, token := env.user(models.RoleAdmin)
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("role", models.RoleNutritionist).Error)

	w := env.do(http.MethodGet, "/admin/status", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMessagingSwitch(t *testing.T) {
	var s MessagingSwitch
	assert.False(t, s.State().Paused)

	st := s.Pause("deploy", "ops@example.com")
	assert.True(t, st.Paused)
	assert.False(t, st.At.IsZero())
	assert.Equal(t, st, s.State())

	s.Resume()
	assert.Equal(t, MessagingState{}, s.State())
}

// TestAdminAuditLogsAndSecurity - Login attempts show up in the audit trail and overview
func TestAdminAuditLogsAndSecurity(t *testing.T) {
	env := newEnv(t)
	_, adminToken := env.user(models.RoleAdmin)
	_, nToken := env.user(models.RoleNutritionist)
	u, _ := env.user(models.RoleNutritionist)

	// STEP 1: Produce some history
	for i := 0; i < security.MaxFailedAttempts; i++ {
		env.do(http.MethodPost, "/login", "", LoginInput{Email: u.Email, Password: "nope"})
	}
	env.do(http.MethodPost, "/login", "", LoginInput{Email: "ghost@example.com", Password: "nope"})

	// STEP 2: Audit trail, paged and filtered
	var page struct {
		Logs    []models.LoginAttempt `json:"logs"`
		Total   int64                 `json:"total"`
		HasMore bool                  `json:"has_more"`
	}
	w := env.do(http.MethodGet, "/admin/audit-logs?limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &page)
	assert.Equal(t, int64(security.MaxFailedAttempts+1), page.Total)
	assert.Len(t, page.Logs, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "ghost@example.com", page.Logs[0].Email) // newest first

	w = env.do(http.MethodGet, "/admin/audit-logs?success=false&email="+strings.ToUpper(u.Email), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Equal(t, int64(security.MaxFailedAttempts), page.Total)
	assert.Equal(t, security.ReasonInvalidPassword, page.Logs[0].FailureReason)

	for _, bad := range []string{"success=maybe", "start_date=yesterday", "user_id=x"} {
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/admin/audit-logs?"+bad, adminToken, nil).Code, bad)
	}

	// STEP 3: Overview lists the locked account
	w = env.do(http.MethodGet, "/admin/security", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ov security.Overview
	decode(t, w, &ov)
	assert.Equal(t, []string{strings.ToLower(u.Email)}, ov.LockedAccounts)
	assert.Equal(t, int64(security.MaxFailedAttempts+1), ov.Failed24h)
	assert.Equal(t, 100.0, ov.FailureRate)
	assert.Equal(t, int64(3), ov.TotalUsers)

	// STEP 4: Staff cannot read it
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/audit-logs", nToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/security", nToken, nil).Code)
}

// TestAdminImportFoodsRefreshesSearch - Imported foods are searchable straight away
func TestAdminImportFoodsRefreshesSearch(t *testing.T) {
	env := newEnv(t)
	_, adminToken := env.user(models.RoleAdmin)
	_, nToken := env.user(models.RoleNutritionist)

	search := func() foods.SearchResult {
		w := env.do(http.MethodGet, "/api/foods?q=arroz", nToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var res foods.SearchResult
		decode(t, w, &res)
		return res
	}
	require.Zero(t, search().TotalCount) // caches the empty page

	ds := ibge.Dataset{Foods: []ibge.Food{
		{Code: "IBGE7001", Name: "Arroz, integral, cozido", Category: "Cereais e derivados", EnergyKcal: 124},
		{Code: "IBGE7002", Name: "Cuscuz", Category: "Cereais e derivados", EnergyKcal: 112},
	}}
	w := env.do(http.MethodPost, "/admin/foods/import", adminToken, ds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res ibge.ImportResult
	decode(t, w, &res)
	assert.Equal(t, ibge.ImportResult{Created: 2}, res)

	found := search()
	require.Equal(t, 1, found.TotalCount)
	assert.Equal(t, "IBGE7001", found.Foods[0].Code)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/admin/foods/import", adminToken, ibge.Dataset{}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/admin/foods/import", nToken, ds).Code)
}
