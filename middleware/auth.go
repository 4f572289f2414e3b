// auth.go - JWT authentication and role checks
//
// Authentication Flow:
// 1. Take the token from "Authorization: Bearer <token>" or the ?token= query
//    parameter (browsers cannot set headers on websocket upgrades)
// 2. Validate signature and expiry
// 3. Reject second-factor temp tokens, they only unlock POST /login/2fa
// 4. Store user_id and role in the gin context

package middleware // Declares the package name

import ( // Import required packages
	"errors"   // Token error values
	"net/http" // HTTP status codes (401, 403, etc.)
	"strings"  // String operations (for header parsing)
	"time"     // Token expiry

	"github.com/gin-gonic/gin"     // Gin web framework (for middleware)
	"github.com/golang-jwt/jwt/v5" // JWT library (for token validation)
	"gorm.io/gorm"                 // Role lookups for admin routes

	"go-nutri-backend/models" // User model (for role checking)
)

// Context keys set by AuthMiddleware
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// TempTokenTTL is how long a user has to enter the second factor.
const TempTokenTTL = 5 * time.Minute

const claimAwaiting2FA = "awaiting_2fa"

var ErrTempToken = errors.New("second factor pending")

// IssueToken signs a session token carrying the user's ID and role.
func IssueToken(secret string, user models.User, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// IssueTempToken signs a token that only proves the password was right.
func IssueTempToken(secret string, userID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":        userID,
		claimAwaiting2FA: true,
		"exp":            time.Now().Add(TempTokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// ParseToken validates a session token and returns its user ID and role.
// Temp tokens fail with ErrTempToken.
func ParseToken(secret, tokenStr string) (uint, string, error) {
	claims, err := parse(secret, tokenStr)
	if err != nil {
		return 0, "", err
	}
	if pending, _ := claims[claimAwaiting2FA].(bool); pending {
		return 0, "", ErrTempToken
	}
	id, err := userID(claims)
	if err != nil {
		return 0, "", err
	}
	role, _ := claims["role"].(string)
	return id, role, nil
}

// ParseTempToken is the counterpart of IssueTempToken.
func ParseTempToken(secret, tokenStr string) (uint, error) {
	claims, err := parse(secret, tokenStr)
	if err != nil {
		return 0, err
	}
	if pending, _ := claims[claimAwaiting2FA].(bool); !pending {
		return 0, errors.New("not a second-factor token")
	}
	return userID(claims)
}

func parse(secret, tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil // Provide secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func userID(claims jwt.MapClaims) (uint, error) {
	raw, ok := claims["user_id"].(float64) // JWT numbers are float64
	if !ok || raw <= 0 {
		return 0, errors.New("invalid user ID format")
	}
	return uint(raw), nil
}

// AuthMiddleware - Returns a Gin middleware function for JWT authentication
func AuthMiddleware(secret string) gin.HandlerFunc { // Returns a Gin middleware function
	return func(c *gin.Context) { // Middleware handler (runs before each request)
		if !authenticate(secret, c) {
			return
		}
		c.Next() // Continue to next handler (authentication successful)
	}
}

// authenticate stores the caller's identity in c, or aborts and returns false.
func authenticate(secret string, c *gin.Context) bool {
	// STEP 1: Extract the token
	tokenStr := ""
	header := c.GetHeader("Authorization") // Get Authorization header
	if strings.HasPrefix(header, "Bearer ") {
		tokenStr = strings.TrimPrefix(header, "Bearer ") // Remove 'Bearer ' prefix
	} else if header == "" {
		tokenStr = c.Query("token") // Websocket clients
	}
	if tokenStr == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"}) // Return 401 Unauthorized
		return false
	}

	// STEP 2: Validate it
	id, role, err := ParseToken(secret, tokenStr)
	if errors.Is(err, ErrTempToken) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "two-factor verification required"})
		return false
	}
	if err != nil { // If token is invalid or expired
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"}) // Return 401 Unauthorized
		return false
	}

	// STEP 3: Store identity in context for later use
	c.Set(KeyUserID, id)
	c.Set(KeyRole, role)
	return true
}

// UserID returns the authenticated user's ID.
func UserID(c *gin.Context) uint {
	return c.GetUint(KeyUserID)
}

// Role returns the authenticated user's role.
func Role(c *gin.Context) string {
	return c.GetString(KeyRole)
}

// RequireRole lets the request through only for the listed roles. It must
// run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// AdminMiddleware - Returns a Gin middleware function for admin access control
// The role is re-read from the database so a demoted admin loses access
// before their token expires.
func AdminMiddleware(secret string, db *gorm.DB) gin.HandlerFunc { // Returns a Gin middleware function for admin access
	return func(c *gin.Context) { // Middleware handler (runs before admin endpoints)
		// STEP 1: Authenticate first
		if !authenticate(secret, c) {
			return // Exit early - authentication failed
		}

		// STEP 2: Query database to get user details and check role
		var user models.User
		if err := db.First(&user, UserID(c)).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		// STEP 3: Check if user has admin role
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Next() // Continue to next handler (admin access granted)
	}
}
