package handlers

import (
	"github.com/gin-gonic/gin"

	"riskguard/internal/geoip"
	"riskguard/internal/middleware"
	"riskguard/internal/policy"
	"riskguard/internal/session"
	"riskguard/internal/store"
	"riskguard/internal/stepup"
	"riskguard/pkg/tokens"
)

// Deps bundles the collaborators routes.go wires into handlers.
type Deps struct {
	Orchestrator  *stepup.Orchestrator
	Guardian      *session.Guardian
	Profiles      *store.ProfileStore
	Minter        *tokens.Minter
	GeoIP         *geoip.Resolver
	Policy        *policy.Store
	SecureCookies bool
}

// SetupRoutes configures all API routes for the service.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", HealthCheckHandler)
	router.GET("/auth/csrf", middleware.IssueCSRFToken(deps.SecureCookies))

	resolveIP := NewIPResolver(deps.GeoIP, deps.Policy)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", RegisterHandler(deps.Orchestrator))
		authGroup.POST("/verify", VerifyHandler(deps.Orchestrator))
		authGroup.POST("/onboard", OnboardHandler(deps.Orchestrator))
		authGroup.POST("/login", LoginHandler(deps.Orchestrator, resolveIP))
		authGroup.POST("/step-up", StepUpHandler(deps.Orchestrator))
		authGroup.POST("/magic-link", SendMagicLinkHandler(deps.Orchestrator))
		authGroup.POST("/magic-link/verify", VerifyMagicLinkHandler(deps.Orchestrator))
		authGroup.POST("/refresh", RefreshHandler(deps.Orchestrator))
	}

	sessionGroup := router.Group("/session")
	sessionGroup.Use(middleware.RequireAccessToken(deps.Minter))
	{
		sessionGroup.POST("/telemetry", SessionTelemetryHandler(deps.Guardian, deps.Profiles))
		sessionGroup.GET("/:session_id/status", SessionStatusHandler(deps.Guardian))
	}
}
