package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
	"riskguard/internal/session"
	"riskguard/internal/store"
)

type sessionTelemetryRequest struct {
	SessionID       string           `json:"session_id" binding:"required"`
	PrincipalID     string           `json:"principal_id" binding:"required"`
	IdleJitterMs    float64          `json:"idle_jitter_ms"`
	PointerSpeedStd float64          `json:"pointer_speed_std"`
	NavBackForward  int              `json:"nav_back_forward"`
	Challenge       challengeRequest `json:"challenge"`
}

type sessionStateResponse struct {
	RiskLevel string `json:"risk_level"`
	RiskScore int    `json:"risk_score"`
	Reason    string `json:"reason,omitempty"`
}

func toSessionStateResponse(s session.State) sessionStateResponse {
	return sessionStateResponse{RiskLevel: s.RiskLevel, RiskScore: s.RiskScore, Reason: s.Reason}
}

// SessionTelemetryHandler ingests one batch of in-session telemetry,
// re-scores the session, and persists the refreshed risk state.
func SessionTelemetryHandler(guardian *session.Guardian, profiles *store.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionTelemetryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		principalID, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
			return
		}
		tokenSig, _ := c.Get(behaviorSigKeyExported)
		sig, _ := tokenSig.(string)

		profileModel, err := profiles.ByPrincipal(principalID)
		if err != nil {
			c.JSON(http.StatusOK, sessionStateResponse{RiskLevel: riskengine.LevelMedium, Reason: "evaluation_degraded"})
			return
		}
		base := store.ToBaseline(profileModel)
		clientIP := c.ClientIP()

		telemetry := riskengine.SessionTelemetry{
			IdleJitterMs: req.IdleJitterMs, PointerSpeedStd: req.PointerSpeedStd, NavBackForward: req.NavBackForward,
		}
		challenge := toChallenge(req.Challenge, clientIP)

		state, err := guardian.IngestTelemetry(
			c.Request.Context(), req.SessionID, telemetry, challenge,
			riskengine.IPInfo{Addr: clientIP}, base, sig, policy.Prefix(clientIP),
		)
		if err != nil {
			c.JSON(http.StatusOK, sessionStateResponse{RiskLevel: riskengine.LevelMedium, Reason: "evaluation_degraded"})
			return
		}
		c.JSON(http.StatusOK, toSessionStateResponse(state))
	}
}

// SessionStatusHandler reports a session's last computed risk state.
func SessionStatusHandler(guardian *session.Guardian) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		state, ok, err := guardian.Status(c.Request.Context(), sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session state"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session state"})
			return
		}
		c.JSON(http.StatusOK, toSessionStateResponse(state))
	}
}

// behaviorSigKeyExported mirrors internal/middleware's unexported
// behaviorSigKey context key string so handlers can read the bound behavior
// signature that RequireAccessToken stores.
const behaviorSigKeyExported = "behavior_signature"
