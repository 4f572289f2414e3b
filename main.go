// main.go - Entry point for the nutrition practice backend

package main // Declares the package name

import ( // Import required packages
	"context"   // Shutdown deadline
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals and exit codes
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-contrib/gzip"  // Response compression
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Shared rate-limit counters

	"go-nutri-backend/config"    // Project config management
	"go-nutri-backend/database"  // Database connection and setup
	"go-nutri-backend/foods"     // Food catalog service
	"go-nutri-backend/handlers"  // HTTP handlers for API endpoints
	"go-nutri-backend/jobs"      // Background housekeeping
	"go-nutri-backend/logger"    // Structured logging
	"go-nutri-backend/mqtt"      // MQTT client logic
	"go-nutri-backend/ratelimit" // Request limits
	"go-nutri-backend/realtime"  // Websocket hub
	"go-nutri-backend/security"  // Login audit and lockout
	"go-nutri-backend/twofactor" // TOTP second factor
)

func main() { // Main function, program entry point
	// STEP 1: Load configuration and logging
	cfg := config.Load()
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.Init(zl)
	defer logger.Sync()
	log := logger.L()

	// STEP 2: Establish connections
	if err := database.Connect(cfg); err != nil { // Connect to the database
		log.Fatalw("DB connection error", "error", err)
	}
	if err := mqtt.Connect(cfg.MQTTBroker); err != nil { // Broker is optional, run without the bridge
		log.Warnw("MQTT connection error, event bridge disabled", "error", err)
	}
	defer mqtt.Disconnect()

	store, windows := rateLimitStore(cfg)

	// STEP 3: Services
	catalog, err := foods.NewService(database.DB, cfg.FoodCacheSize, cfg.FoodCacheTTL)
	if err != nil {
		log.Fatalw("food catalog", "error", err)
	}
	if err := mqtt.Subscribe(foods.UpdatedTopic(cfg.MQTTTopicPrefix), func([]byte) { // ibge-import announces new foods
		catalog.Invalidate()
		log.Infow("food search cache invalidated")
	}); err != nil {
		log.Warnw("MQTT subscribe error, food cache relies on its TTL", "error", err)
	}
	guard := security.NewGuard(database.DB)

	hubOpts := realtime.Options{Contacts: handlers.Contacts(database.DB)}
	var bridge *realtime.Bridge
	if mqtt.Connected() {
		bridge = realtime.NewBridge(cfg.MQTTTopicPrefix, mqtt.Publish)
		hubOpts.Forwarder = bridge
		defer bridge.Close()
	}
	hub := realtime.NewHub(hubOpts)
	defer hub.Close()

	housekeeper := &jobs.Housekeeper{Attempts: guard}
	if windows != nil {
		housekeeper.Windows = windows
	}
	scheduler, err := housekeeper.Start()
	if err != nil {
		log.Fatalw("scheduler", "error", err)
	}
	defer scheduler.Stop()

	api := &handlers.API{
		DB:        database.DB,
		Config:    cfg,
		Foods:     catalog,
		TwoFactor: twofactor.NewManager(database.DB, cfg.TwoFactorKey, cfg.TwoFactorIssuer),
		Guard:     guard,
		Hub:       hub,
		Bridge:    bridge,
		Limits:    handlers.NewLimits(store),
		Upgrader:  realtime.Upgrader(cfg.AllowedOrigins),
		Messaging: &handlers.MessagingSwitch{},
	}

	// STEP 4: Router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{"/ws"})))
	api.Routes(r)

	// STEP 5: Serve until interrupted
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("shutdown", "error", err)
	}
}

// rateLimitStore picks Redis when configured and reachable, memory otherwise.
// The memory store is also returned so housekeeping can prune it.
func rateLimitStore(cfg *config.Config) (ratelimit.Store, *ratelimit.MemoryStore) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := 0; i < 3; i++ { // the container may still be starting
			if err := client.Ping(ctx).Err(); err == nil {
				logger.L().Infow("rate limits stored in redis", "addr", cfg.RedisAddr)
				return ratelimit.NewRedisStore(client), nil
			}
			time.Sleep(time.Second)
		}
		logger.L().Warnw("redis unreachable, rate limits kept in memory", "addr", cfg.RedisAddr)
		_ = client.Close()
	}
	mem := ratelimit.NewMemoryStore()
	return mem, mem
}
