// user.go - Handles registration, login and the second factor

package handlers // Declares the package name

import ( // Import required packages
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // Email normalization

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // Record lookups

	"go-nutri-backend/logger"     // Structured logging
	"go-nutri-backend/middleware" // Token issuing
	"go-nutri-backend/models"     // User model
	"go-nutri-backend/security"   // Login audit and lockout
	"go-nutri-backend/twofactor"  // TOTP second factor
)

type RegisterInput struct { // Struct for registration input
	Name     string `json:"name" binding:"required"`           // Display name (required)
	Email    string `json:"email" binding:"required,email"`    // Email (required)
	Password string `json:"password" binding:"required,min=6"` // Password (required)
	Role     string `json:"role"`                              // nutritionist (default) or patient
}

type LoginInput struct { // Struct for login input
	Email    string `json:"email" binding:"required"`    // Email (required)
	Password string `json:"password" binding:"required"` // Password (required)
}

type SecondFactorInput struct { // Struct for the second login step
	TempToken string `json:"temp_token" binding:"required"` // Token returned by /login
	Code      string `json:"code" binding:"required"`       // TOTP or backup code
	Backup    bool   `json:"backup"`                        // Code is a backup code
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (a *API) Register(c *gin.Context) { // Handler for user registration
	var input RegisterInput                          // Declare input variable
	if err := c.ShouldBindJSON(&input); err != nil { // Parse JSON input
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}) // Return error if invalid
		return
	}
	role := input.Role
	switch role {
	case "":
		role = models.RoleNutritionist
	case models.RoleNutritionist, models.RolePatient:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be nutritionist or patient"})
		return
	}

	email := normalizeEmail(input.Email)
	var count int64
	if err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		fail(c, err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost) // Hash password
	if err != nil {
		fail(c, err)
		return
	}
	user := models.User{Name: strings.TrimSpace(input.Name), Email: email, Password: string(hash), Role: role}
	if err := a.DB.Create(&user).Error; err != nil { // Save user to DB
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}) // Return error if DB fails
		return
	}
	logger.L().Infow("user registered", "user_id", user.ID, "role", role)
	c.JSON(http.StatusCreated, gin.H{"message": "registration successful", "user": user}) // Success response
}

func (a *API) Login(c *gin.Context) { // Handler for user login
	var input LoginInput                             // Declare input variable
	if err := c.ShouldBindJSON(&input); err != nil { // Parse JSON input
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}) // Return error if invalid
		return
	}
	ctx := c.Request.Context()
	email := normalizeEmail(input.Email)
	attempt := security.Attempt{Email: email, IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}

	// STEP 1: Lockout check comes before any password work
	if a.locked(c, attempt) {
		return
	}

	// STEP 2: Credentials
	var user models.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil { // Find user by email
		attempt.Reason = security.ReasonInvalidCredentials
		a.record(c, attempt)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"}) // Return error if not found
		return
	}
	attempt.UserID = &user.ID
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil { // Check password
		attempt.Reason = security.ReasonInvalidPassword
		a.record(c, attempt)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"}) // Return error if wrong
		return
	}

	// STEP 3: Second factor, when enabled
	enabled, err := a.TwoFactor.Enabled(ctx, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	if enabled {
		temp, err := middleware.IssueTempToken(a.Config.JWTSecret, user.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requires_2fa": true, "temp_token": temp})
		return
	}

	a.completeLogin(c, user, attempt)
}

// LoginSecondFactor finishes a login started with a temp token.
func (a *API) LoginSecondFactor(c *gin.Context) {
	var input SecondFactorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := middleware.ParseTempToken(a.Config.JWTSecret, input.TempToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired temp token"})
		return
	}
	var user models.User
	if err := a.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	attempt := security.Attempt{UserID: &user.ID, Email: normalizeEmail(user.Email), IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if a.locked(c, attempt) { // Failed codes count towards the same lock
		return
	}
	ok, err := a.TwoFactor.Verify(c.Request.Context(), user.ID, input.Code, input.Backup)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		attempt.Reason = security.ReasonInvalid2FA
		a.record(c, attempt)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid two-factor code"})
		return
	}
	a.completeLogin(c, user, attempt)
}

// completeLogin runs the suspicious-login check, records the success and
// issues the session token.
func (a *API) completeLogin(c *gin.Context, user models.User, attempt security.Attempt) {
	factors, suspicious, err := a.Guard.Suspicious(c.Request.Context(), user.ID, attempt.IP, attempt.UserAgent)
	if err != nil {
		logger.L().Warnw("suspicious login check failed", "user_id", user.ID, "error", err)
	}
	if suspicious {
		logger.L().Warnw("suspicious login", "user_id", user.ID, "ip", attempt.IP, "factors", factors)
	}

	attempt.Success = true
	attempt.Reason = ""
	a.record(c, attempt)

	token, err := middleware.IssueToken(a.Config.JWTSecret, user, a.Config.TokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"token": token, "user": user}
	if suspicious {
		resp["security_alert"] = factors
	}
	c.JSON(http.StatusOK, resp)
}

// locked answers 423 and records the attempt when the email is locked out.
func (a *API) locked(c *gin.Context, attempt security.Attempt) bool {
	lock, err := a.Guard.Status(c.Request.Context(), attempt.Email)
	if err != nil {
		fail(c, err)
		return true
	}
	if !lock.Locked {
		return false
	}
	attempt.Reason = security.ReasonLocked
	a.record(c, attempt)
	c.JSON(http.StatusLocked, gin.H{
		"error":        "account temporarily locked after too many failed attempts",
		"locked_until": lock.LockedUntil,
	})
	return true
}

func (a *API) record(c *gin.Context, attempt security.Attempt) {
	if err := a.Guard.Record(c.Request.Context(), attempt); err != nil {
		logger.L().Errorw("record login attempt", "email", attempt.Email, "error", err)
	}
}

// Me returns the caller's account, with the patient profile for patients.
func (a *API) Me(c *gin.Context) {
	var user models.User
	if err := a.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"user": user}
	if user.Role == models.RolePatient {
		var p models.Patient
		err := a.DB.Where("user_id = ?", user.ID).First(&p).Error
		if err == nil {
			resp["patient"] = p
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) TwoFactorStatus(c *gin.Context) {
	st, err := a.TwoFactor.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) TwoFactorSetup(c *gin.Context) {
	var user models.User
	if err := a.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		fail(c, err)
		return
	}
	setup, err := a.TwoFactor.Setup(c.Request.Context(), user.ID, user.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

func (a *API) TwoFactorEnable(c *gin.Context) {
	var input struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := a.TwoFactor.Enable(c.Request.Context(), middleware.UserID(c), input.Code)
	switch {
	case errors.Is(err, twofactor.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, twofactor.ErrNotConfigured):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		fail(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "two-factor authentication enabled"})
	}
}

// TwoFactorDisable asks for the password again before removing the factor.
func (a *API) TwoFactorDisable(c *gin.Context) {
	var input struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var user models.User
	if err := a.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		fail(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	err := a.TwoFactor.Disable(c.Request.Context(), user.ID)
	if errors.Is(err, twofactor.ErrNotConfigured) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "two-factor authentication disabled"})
}

// RegenerateBackupCodes issues a new set of backup codes against a current
// authenticator code.
func (a *API) RegenerateBackupCodes(c *gin.Context) {
	var input struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	codes, err := a.TwoFactor.RegenerateBackupCodes(c.Request.Context(), middleware.UserID(c), input.Code)
	switch {
	case errors.Is(err, twofactor.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, twofactor.ErrNotConfigured):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		fail(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"backup_codes": codes})
	}
}
