// config.go - Handles configuration for the project

package config // Declares the package name

import ( // Import required packages
	"log"  // Bootstrap logging (zap is not built yet when config loads)
	"time" // Durations for token TTL

	"github.com/joho/godotenv"               // Loads .env into the environment
	"github.com/kelseyhightower/envconfig" // Binds environment variables to the struct
)

// Config holds all configuration values. Every field can be set from the
// environment; the default tag is used when the variable is absent.
type Config struct {
	Port            string        `envconfig:"PORT" default:"8080"`                             // HTTP listen port
	DBDriver        string        `envconfig:"DB_DRIVER" default:"sqlite"`                      // sqlite or postgres
	DBPath          string        `envconfig:"DB_PATH" default:"data.db"`                       // Path to the SQLite database file
	DatabaseURL     string        `envconfig:"DATABASE_URL"`                                    // Postgres DSN
	JWTSecret       string        `envconfig:"JWT_SECRET" default:"supersecret"`                // Secret key for JWT authentication
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"24h"`                         // Session token lifetime
	TwoFactorKey    string        `envconfig:"TWO_FACTOR_KEY" default:"change-me"`              // Seals TOTP secrets at rest
	TwoFactorIssuer string        `envconfig:"TWO_FACTOR_ISSUER" default:"Nutri"`               // Issuer shown by authenticator apps
	CreateAdmin     bool          `envconfig:"CREATE_ADMIN" default:"false"`                    // Seed a default admin on startup
	AdminEmail      string        `envconfig:"ADMIN_EMAIL" default:"admin@nutri.local"`         // Default admin email
	AdminPassword   string        `envconfig:"ADMIN_PASSWORD"`                                  // Default admin password
	MQTTBroker      string        `envconfig:"MQTT_BROKER"`                                     // Event bridge broker, empty disables it
	MQTTTopicPrefix string        `envconfig:"MQTT_TOPIC_PREFIX" default:"nutri"`               // Root of bridged event topics
	RedisAddr       string        `envconfig:"REDIS_ADDR"`                                      // Rate limit store, empty uses memory
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"` // CORS and websocket origins
	FoodCacheSize   int           `envconfig:"FOOD_CACHE_SIZE" default:"512"`                   // LRU entries for food search
	FoodCacheTTL    time.Duration `envconfig:"FOOD_CACHE_TTL" default:"5m"`                     // Lifetime of a cached search page
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`                        // zap level name
	IBGEDataPath    string        `envconfig:"IBGE_DATA_PATH" default:"data/ibge-pof.json"`     // Dataset used by ibge-import
}

func init() { // Load .env once per process, a missing file is fine
	_ = godotenv.Load()
}

// Load reads config from environment variables or uses defaults
func Load() *Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil { // Bad values (e.g. TOKEN_TTL=abc)
		log.Printf("config: %v, using defaults", err)
		return defaults()
	}
	return &cfg
}

func defaults() *Config { // Hard defaults matching the struct tags
	return &Config{
		Port:            "8080",
		DBDriver:        "sqlite",
		DBPath:          "data.db",
		JWTSecret:       "supersecret",
		TokenTTL:        24 * time.Hour,
		TwoFactorKey:    "change-me",
		TwoFactorIssuer: "Nutri",
		MQTTTopicPrefix: "nutri",
		AdminEmail:      "admin@nutri.local",
		AllowedOrigins:  []string{"http://localhost:3000"},
		FoodCacheSize:   512,
		FoodCacheTTL:    5 * time.Minute,
		LogLevel:        "info",
		IBGEDataPath:    "data/ibge-pof.json",
	}
}
