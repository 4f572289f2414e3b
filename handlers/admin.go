// admin.go - Admin control over messaging and a system status view
// This file implements:
// 1. A messaging pause switch (new messages get 503 while paused)
// 2. Resume
// 3. A status report covering sockets, the MQTT bridge and the pause state
// 4. The login audit trail and a security overview
// 5. Food dataset import

package handlers // Declares the package name

import ( // Import required packages
	"net/http" // HTTP status codes (200, 503, etc.)
	"strconv"  // Query flags
	"sync"     // For mutex (thread safety in concurrent operations)
	"time"     // Timestamps for the audit trail

	"github.com/gin-gonic/gin" // Gin web framework for HTTP handlers

	"go-nutri-backend/foods"      // Cache invalidation topic
	"go-nutri-backend/ibge"       // Dataset import
	"go-nutri-backend/logger"     // Structured logging
	"go-nutri-backend/middleware" // Caller identity
	"go-nutri-backend/models"     // User model for the audit trail
	"go-nutri-backend/mqtt"       // Broker notifications
	"go-nutri-backend/security"   // Login audit queries
)

// MessagingSwitch holds the admin pause state, shared by every request.
type MessagingSwitch struct {
	mu     sync.Mutex // Guards the fields below
	paused bool       // Whether sending is paused
	reason string     // Why (e.g. "Scheduled maintenance")
	by     string     // Admin email for the audit trail
	at     time.Time  // When the pause began
}

// MessagingState is a snapshot of the switch.
type MessagingState struct {
	Paused bool      `json:"paused"`
	Reason string    `json:"reason"`
	By     string    `json:"paused_by"`
	At     time.Time `json:"paused_at"`
}

func (s *MessagingSwitch) Pause(reason, by string) MessagingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused, s.reason, s.by, s.at = true, reason, by, time.Now()
	return s.snapshot()
}

func (s *MessagingSwitch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused, s.reason, s.by, s.at = false, "", "", time.Time{}
}

func (s *MessagingSwitch) State() MessagingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *MessagingSwitch) snapshot() MessagingState {
	return MessagingState{Paused: s.paused, Reason: s.reason, By: s.by, At: s.at}
}

// systemTopic is where pause and resume are announced on the broker.
func (a *API) systemTopic() string {
	return a.Config.MQTTTopicPrefix + "/system/messaging"
}

// PauseMessaging - Admin handler to stop new messages
//
// Process:
// 1. Validate the reason (required, for the audit trail)
// 2. Look up the admin for the audit trail
// 3. Flip the switch
// 4. Announce it on the broker
func (a *API) PauseMessaging(c *gin.Context) {
	// STEP 1: Parse reason from request
	var input struct {
		Reason string `json:"reason" binding:"required"` // Reason for the pause (required)
	}
	if err := c.ShouldBindJSON(&input); err != nil { // Parse JSON input from request body
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}) // Return 400 error if JSON is invalid
		return
	}

	// STEP 2: Get user details from database for audit trail
	var user models.User
	if err := a.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	// STEP 3: Set pause state (thread-safe)
	st := a.Messaging.Pause(input.Reason, user.Email)
	logger.L().Warnw("messaging paused", "by", user.Email, "reason", input.Reason)

	// STEP 4: Tell other services
	if err := mqtt.Publish(a.systemTopic(), st); err != nil {
		logger.L().Warnw("announce messaging pause", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Messaging paused",
		"reason":    st.Reason, // Why it was paused
		"paused_by": st.By,     // Who paused it
		"paused_at": st.At,     // When it was paused
	})
}

// ResumeMessaging - Admin handler to allow messages again
func (a *API) ResumeMessaging(c *gin.Context) {
	a.Messaging.Resume()
	logger.L().Infow("messaging resumed", "by", middleware.UserID(c))
	if err := mqtt.Publish(a.systemTopic(), a.Messaging.State()); err != nil {
		logger.L().Warnw("announce messaging resume", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Messaging resumed",
		"resumed_at": time.Now(), // When it was resumed
	})
}

// SystemStatus - Handler to get system status
//
// Status Information:
// - Pause state and its audit trail
// - Connected users and sockets
// - Broker connection and bridge counters
func (a *API) SystemStatus(c *gin.Context) {
	users, conns := 0, 0
	if a.Hub != nil {
		users, conns = a.Hub.Stats()
	}
	bridge := gin.H{"enabled": a.Bridge != nil, "connected": mqtt.Connected()}
	if a.Bridge != nil {
		bridge["stats"] = a.Bridge.Stats()
		bridge["pending"] = a.Bridge.Pending()
	}

	c.JSON(http.StatusOK, gin.H{
		"messaging": a.Messaging.State(),
		"realtime": gin.H{
			"online_users": users,
			"connections":  conns,
		},
		"bridge": bridge,
	})
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLogs - GET /admin/audit-logs, login attempts newest first
//
// Filters: email, user_id, success (true/false), start_date and end_date
// (YYYY-MM-DD, inclusive), limit and offset.
func (a *API) AuditLogs(c *gin.Context) {
	f := security.AttemptFilter{Email: normalizeEmail(c.Query("email")), Limit: defaultAuditLimit}
	userID, ok := uintQuery(c, "user_id")
	if !ok {
		return
	}
	f.UserID = userID
	if raw := c.Query("success"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "success must be true or false"})
			return
		}
		f.Success = &v
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		f.Since = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		f.Until = t.AddDate(0, 0, 1)
	}
	if limit, ok := uintQuery(c, "limit"); !ok {
		return
	} else if limit > 0 {
		f.Limit = int(min(limit, maxAuditLimit))
	}
	offset, ok := uintQuery(c, "offset")
	if !ok {
		return
	}
	f.Offset = int(offset)

	list, total, err := a.Guard.Attempts(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":     list,
		"total":    total,
		"limit":    f.Limit,
		"offset":   f.Offset,
		"has_more": int64(f.Offset+len(list)) < total,
	})
}

// SecurityOverview - GET /admin/security, last 24 hours of logins and the
// accounts locked right now
func (a *API) SecurityOverview(c *gin.Context) {
	ov, err := a.Guard.Overview(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// ImportFoods - POST /admin/foods/import with a dataset body
//
// Process:
// 1. Upsert the foods by code
// 2. Drop cached searches here and tell other instances
func (a *API) ImportFoods(c *gin.Context) {
	var ds ibge.Dataset
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(ds.Foods) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset has no foods"})
		return
	}

	// STEP 1: Write
	res, err := ibge.Import(c.Request.Context(), a.DB, ds.Foods)
	if err != nil {
		fail(c, err)
		return
	}

	// STEP 2: Fresh searches from now on
	a.Foods.Invalidate()
	if err := mqtt.Publish(foods.UpdatedTopic(a.Config.MQTTTopicPrefix), res); err != nil {
		logger.L().Warnw("announce food import", "error", err)
	}
	logger.L().Infow("foods imported", "by", middleware.UserID(c), "created", res.Created, "updated", res.Updated)
	c.JSON(http.StatusOK, res)
}
