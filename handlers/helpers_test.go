// helpers_test.go - Shared fixtures for handler tests
// Run with: go test ./...

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaswdr/faker"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-nutri-backend/config"
	"go-nutri-backend/database"
	"go-nutri-backend/foods"
	"go-nutri-backend/middleware"
	"go-nutri-backend/models"
	"go-nutri-backend/ratelimit"
	"go-nutri-backend/realtime"
	"go-nutri-backend/security"
	"go-nutri-backend/twofactor"
)

const testPassword = "secret123"

type testEnv struct {
	t      *testing.T
	api    *API
	db     *gorm.DB
	router *gin.Engine
	fake   faker.Faker
}

// newEnv builds the full route table over a fresh SQLite file. Limits are
// generous so only tests that target them ever see a 429.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "handlers.db"), "")
	require.NoError(t, err)
	catalog, err := foods.NewService(db, 16, time.Minute)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		TwoFactorKey:    "test-key",
		TwoFactorIssuer: "Nutri",
		MQTTTopicPrefix: "nutri",
	}
	store := ratelimit.NewMemoryStore()
	hub := realtime.NewHub(realtime.Options{Contacts: Contacts(db)})
	t.Cleanup(hub.Close)

	api := &API{
		DB:        db,
		Config:    cfg,
		Foods:     catalog,
		TwoFactor: twofactor.NewManager(db, cfg.TwoFactorKey, cfg.TwoFactorIssuer),
		Guard:     security.NewGuard(db),
		Hub:       hub,
		Limits: Limits{
			Login:     ratelimit.New("login", store, 1000, time.Minute),
			Register:  ratelimit.New("register", store, 1000, time.Minute),
			TwoFactor: ratelimit.New("2fa", store, 1000, time.Minute),
			API:       ratelimit.New("api", store, 1000, time.Minute),
		},
		Upgrader:  realtime.Upgrader(nil),
		Messaging: &MessagingSwitch{},
	}
	return &testEnv{t: t, api: api, db: db, router: newRouter(api), fake: faker.New()}
}

func newRouter(api *API) *gin.Engine {
	r := gin.New()
	api.Routes(r)
	return r
}

// user stores an account with testPassword and returns it with a session token.
func (e *testEnv) user(role string) (models.User, string) {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)
	u := models.User{
		Name:     e.fake.Person().Name(),
		Email:    e.fake.Internet().Email(),
		Password: string(hash),
		Role:     role,
	}
	require.NoError(e.t, e.db.Create(&u).Error)
	token, err := middleware.IssueToken(e.api.Config.JWTSecret, u, time.Hour)
	require.NoError(e.t, err)
	return u, token
}

// patient stores a patient account and profile owned by nutritionistID.
func (e *testEnv) patient(nutritionistID uint) (models.Patient, string) {
	e.t.Helper()
	u, token := e.user(models.RolePatient)
	p := models.Patient{UserID: u.ID, NutritionistID: nutritionistID, Height: 170, Weight: 70, Gender: "female"}
	require.NoError(e.t, e.db.Omit("User").Create(&p).Error)
	p.User = u
	return p, token
}

func (e *testEnv) food(name, category string, kcal, protein, carbs, fat float64) models.Food {
	e.t.Helper()
	f := models.Food{
		Code:         e.fake.UUID().V4(),
		Source:       "TACO",
		Name:         name,
		Category:     category,
		EnergyKcal:   kcal,
		Protein:      protein,
		Carbohydrate: carbs,
		Lipids:       fat,
	}
	require.NoError(e.t, e.db.Create(&f).Error)
	return f
}

// enrollTwoFactor turns the second factor on for the token's user and
// returns the secret and backup codes.
func (e *testEnv) enrollTwoFactor(token string) (string, []string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/2fa/setup", token, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var setup struct {
		Secret      string   `json:"secret"`
		BackupCodes []string `json:"backup_codes"`
	}
	decode(e.t, w, &setup)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(e.t, err)
	w = e.do(http.MethodPost, "/api/2fa/enable", token, map[string]string{"code": code})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return setup.Secret, setup.BackupCodes
}

// tempToken runs the password step for a 2FA account.
func (e *testEnv) tempToken(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/login", "", LoginInput{Email: email, Password: testPassword})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		TempToken string `json:"temp_token"`
	}
	decode(e.t, w, &out)
	require.NotEmpty(e.t, out.TempToken)
	return out.TempToken
}

// do sends body as JSON (nil for none) and returns the recorder.
func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
