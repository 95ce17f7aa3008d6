// Package store holds the persistence collaborators: a GORM-backed system
// of record for profiles/principals/counters/audit log, and a Redis-backed
// hot-path session store, following the teacher's database.go init pattern.
package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"riskguard/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OpenDB connects to postgres (via DATABASE_URL or DB_* components) or
// falls back to a local sqlite file for development, matching the
// teacher's Neon-aware dialector switch.
func OpenDB() (*gorm.DB, error) {
	var dialector gorm.Dialector

	if url := getEnv("DATABASE_URL", ""); url != "" {
		dialector = postgres.Open(url)
	} else if dbType := getEnv("DB_TYPE", "sqlite"); dbType == "postgres" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"), getEnv("DB_USER", "riskguard"),
			getEnv("DB_PASSWORD", ""), getEnv("DB_NAME", "riskguard"),
			getEnv("DB_PORT", "5432"), getEnv("DB_SSLMODE", "disable"))
		dialector = postgres.Open(dsn)
	} else {
		path := getEnv("DB_NAME", "riskguard.db")
		dialector = sqlite.Open(path)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if os.Getenv("GIN_MODE") != "release" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if getEnv("RUN_MIGRATIONS", "true") == "true" {
		log.Println("🔄 running database migrations...")
		if err := db.AutoMigrate(
			&models.Principal{},
			&models.Profile{},
			&models.DistinctDayCounter{},
			&models.ChallengeAnswer{},
			&models.GeoEvent{},
			&models.GeoTile{},
			&models.StepUpLog{},
			&models.MagicLink{},
			&models.TrustedDevice{},
		); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Println("✅ database migrations complete")
	}

	return db, nil
}
