// database.go - Handles database connection and setup

package database // Declares the package name

import ( // Import required packages
	"fmt"

	"go-nutri-backend/config" // Project config
	"go-nutri-backend/logger" // Structured logging
	"go-nutri-backend/models" // Persisted entities

	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/driver/postgres"    // Postgres driver for GORM
	"gorm.io/driver/sqlite"      // SQLite driver for GORM
	"gorm.io/gorm"               // GORM ORM
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB // Global variable to hold the database connection (pointer to gorm.DB)

// Connect opens the configured database, runs migrations and seeds the admin
func Connect(cfg *config.Config) error {
	db, err := Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	DB = db

	// Create default admin user if configured
	return createDefaultAdmin(cfg)
}

// Open returns a migrated connection without touching the global
func Open(driver, path, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(path)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	// Models with no dependencies first, then the ones referencing them
	if err := db.AutoMigrate(
		&models.User{},
		&models.Food{},
		&models.Patient{},
		&models.Consultation{},
		&models.Conversation{},
		&models.Message{},
		&models.FoodLog{},
		&models.Diet{},
		&models.DietMeal{},
		&models.DietItem{},
		&models.LoginAttempt{},
		&models.TwoFactorAuth{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// createDefaultAdmin - Creates a default admin user if configured and none exists
// This uses environment variables for security instead of hardcoded credentials
func createDefaultAdmin(cfg *config.Config) error {
	// Only create admin if explicitly configured
	if !cfg.CreateAdmin {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("CREATE_ADMIN set without ADMIN_PASSWORD")
	}

	// Check if any admin user exists
	var count int64
	if err := DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adminUser := models.User{
		Name:     "Administrator",
		Email:    cfg.AdminEmail,
		Password: string(hash),
		Role:     models.RoleAdmin,
	}
	if err := DB.Create(&adminUser).Error; err != nil {
		return err
	}
	logger.L().Infow("default admin created", "email", cfg.AdminEmail)
	return nil
}
