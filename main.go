package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"riskguard/internal/alerts"
	"riskguard/internal/config"
	"riskguard/internal/geoip"
	"riskguard/internal/handlers"
	"riskguard/internal/middleware"
	"riskguard/internal/network"
	"riskguard/internal/policy"
	"riskguard/internal/session"
	"riskguard/internal/stepup"
	"riskguard/internal/store"
	"riskguard/internal/telemetry"
	"riskguard/pkg/tokens"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found or error loading .env file: %v", err)
		log.Printf("Continuing with system environment variables...")
	} else {
		log.Printf("Successfully loaded .env file")
	}

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Printf("✅ Configuration validated successfully")

	zapLog, err := zap.NewProduction()
	if err != nil {
		log.Fatal("❌ Failed to initialize structured logger:", err)
	}
	defer zapLog.Sync()

	log.Printf("🔄 Initializing database connection...")
	var db = mustOpenDB()
	log.Printf("✅ Database initialized successfully")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("⚠️ Warning: Redis unreachable at %s: %v", cfg.RedisAddr, err)
	}

	geoResolver, err := geoip.NewResolver(redisClient)
	if err != nil {
		log.Fatal("❌ Failed to initialize geoip resolver:", err)
	}
	defer geoResolver.Close()

	pol := policy.Load()
	bus := alerts.NewBus()
	minter := tokens.NewMinter(cfg.JWTSecret)

	principals := store.NewPrincipalStore(db)
	profiles := store.NewProfileStore(db)
	audit := store.NewAuditStore(db)
	magicLinks := store.NewMagicLinkStore(db)
	trusted := store.NewTrustedDeviceStore(db)
	challenges := store.NewChallengeAnswerStore(db)
	networkCounters := store.NewNetworkStore(db)
	geoStore := store.NewGeoStore(db)
	sessionStore := store.NewSessionStore(redisClient)

	tracker := network.NewTracker(networkCounters, pol)

	orch := stepup.New(principals, profiles, audit, magicLinks, trusted, challenges, tracker, minter, pol, bus, nil, zapLog)

	guardian := session.NewGuardian(
		func(ctx context.Context, sessionID, level string, score int, reason string, at time.Time) error {
			return sessionStore.Put(ctx, sessionID, store.SessionState{RiskLevel: level, RiskScore: score, Reason: reason, UpdatedAt: at})
		},
		func(ctx context.Context, sessionID string) (string, int, string, time.Time, bool, error) {
			state, ok, err := sessionStore.Get(ctx, sessionID)
			return state.RiskLevel, state.RiskScore, state.Reason, state.UpdatedAt, ok, err
		},
		pol, zapLog,
	)

	worker := telemetry.NewWorker(geoStore, audit, bus, zapLog)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	worker.Run(workerCtx)

	if os.Getenv("GIN_MODE") == "" {
		if os.Getenv("PORT") != "" {
			gin.SetMode(gin.ReleaseMode)
		} else {
			gin.SetMode(gin.DebugMode)
		}
	}

	secureCookies := gin.Mode() == gin.ReleaseMode

	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CSRFDoubleSubmit(secureCookies))
	router.Use(middleware.SessionRiskGate(guardian))

	handlers.SetupRoutes(router, handlers.Deps{
		Orchestrator: orch, Guardian: guardian, Profiles: profiles,
		Minter: minter, GeoIP: geoResolver, Policy: pol,
		SecureCookies: secureCookies,
	})

	log.Printf("🚀 ========================================")
	log.Printf("🚀 riskguard starting")
	log.Printf("🚀 ========================================")
	log.Printf("📅 Timestamp: %s", time.Now().UTC().Format(time.RFC3339))
	log.Printf("🌐 Port: %s", cfg.Port)
	log.Printf("🌍 Allowed Origins: %v", cfg.AllowedOrigins)
	log.Printf("🧠 Risk thresholds: medium=%d high=%d", pol.MediumThreshold, pol.HighThreshold)
	log.Printf("🗺️ GeoIP + Redis cache: %s", cfg.RedisAddr)
	log.Printf("🔄 Telemetry background jobs: running")
	log.Printf("🚀 ========================================")

	address := "0.0.0.0:" + cfg.Port
	log.Printf("🚀 Server starting on %s...", address)
	if err := router.Run(address); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}

func mustOpenDB() *gorm.DB {
	db, err := store.OpenDB()
	if err != nil {
		log.Fatal("❌ Failed to initialize database:", err)
	}
	return db
}
