// api.go - Handler dependencies and route table

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"go-nutri-backend/config"
	"go-nutri-backend/foods"
	"go-nutri-backend/middleware"
	"go-nutri-backend/models"
	"go-nutri-backend/ratelimit"
	"go-nutri-backend/realtime"
	"go-nutri-backend/security"
	"go-nutri-backend/twofactor"
)

// Limits groups the rate limiters applied to public and API routes.
type Limits struct {
	Login     *ratelimit.Limiter
	Register  *ratelimit.Limiter
	TwoFactor *ratelimit.Limiter
	API       *ratelimit.Limiter
}

// NewLimits builds the standard presets over one store.
func NewLimits(store ratelimit.Store) Limits {
	return Limits{
		Login:     ratelimit.Login(store),
		Register:  ratelimit.Register(store),
		TwoFactor: ratelimit.TwoFactor(store),
		API:       ratelimit.API(store),
	}
}

// API carries everything the handlers need.
type API struct {
	DB        *gorm.DB
	Config    *config.Config
	Foods     *foods.Service
	TwoFactor *twofactor.Manager
	Guard     *security.Guard
	Hub       *realtime.Hub
	Bridge    *realtime.Bridge // nil without a broker
	Limits    Limits
	Upgrader  websocket.Upgrader
	Messaging *MessagingSwitch
}

// Routes registers every endpoint on r.
func (a *API) Routes(r *gin.Engine) {
	secret := a.Config.JWTSecret

	// Public routes (no authentication required)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/register", ratelimit.Middleware(a.Limits.Register, nil), a.Register)
	r.POST("/login", ratelimit.Middleware(a.Limits.Login, nil), a.Login)
	r.POST("/login/2fa", ratelimit.Middleware(a.Limits.TwoFactor, nil), a.LoginSecondFactor)

	// Websocket upgrade, token in the query string
	r.GET("/ws", middleware.AuthMiddleware(secret), a.ServeWS)

	// Protected routes (require JWT authentication)
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(secret), ratelimit.Middleware(a.Limits.API, userKey))
	{
		api.GET("/me", a.Me)

		api.GET("/2fa/status", a.TwoFactorStatus)
		api.POST("/2fa/setup", a.TwoFactorSetup)
		api.POST("/2fa/enable", ratelimit.Middleware(a.Limits.TwoFactor, userKey), a.TwoFactorEnable)
		api.POST("/2fa/disable", a.TwoFactorDisable)
		api.POST("/2fa/backup-codes", ratelimit.Middleware(a.Limits.TwoFactor, userKey), a.RegenerateBackupCodes)

		api.GET("/foods", a.SearchFoods)
		api.GET("/foods/categories", a.FoodCategories)
		api.GET("/foods/:id", a.GetFood)
		api.GET("/foods/:id/substitutions", a.FoodSubstitutions)

		api.POST("/nutrition/analyze", a.AnalyzeNutrition)
		api.POST("/nutrition/energy", a.EnergyNeeds)

		api.GET("/conversations", a.ListConversations)
		api.PUT("/conversations/:id/archive", a.ToggleArchive)
		api.PUT("/conversations/:id/pin", a.TogglePin)
		api.GET("/messages", a.ListMessages)
		api.GET("/messages/search", a.SearchMessages)
		api.POST("/messages", a.SendMessage)
		api.PUT("/messages/read", a.MarkRead)

		api.GET("/food-logs", a.ListFoodLogs)
		api.POST("/food-logs", a.CreateFoodLog)

		api.GET("/diets/active", a.ActiveDiet)

		staff := api.Group("", middleware.RequireRole(models.RoleNutritionist, models.RoleAdmin))
		staff.GET("/patients", a.ListPatients)
		staff.POST("/patients", a.CreatePatient)
		staff.GET("/consultations", a.ListConsultations)
		staff.POST("/consultations", a.CreateConsultation)
		staff.POST("/diets", a.SaveDiet)
	}

	// Admin routes
	admin := r.Group("/admin", middleware.AdminMiddleware(secret, a.DB))
	{
		admin.POST("/messaging/pause", a.PauseMessaging)
		admin.POST("/messaging/resume", a.ResumeMessaging)
		admin.GET("/status", a.SystemStatus)
		admin.GET("/security", a.SecurityOverview)
		admin.GET("/audit-logs", a.AuditLogs)
		admin.POST("/foods/import", a.ImportFoods)
	}
}

// userKey rate-limits authenticated routes per account instead of per client.
func userKey(c *gin.Context) string {
	if id := middleware.UserID(c); id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return ratelimit.ClientKey(c)
}

// Sentinel errors mapped to statuses by fail.
var (
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("access denied")
)

// fail writes err with the matching status.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNotFound), errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, foods.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}

// uintQuery parses an optional numeric query parameter; 0 means absent.
func uintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}
