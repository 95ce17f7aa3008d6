// Package handlers adapts the step-up orchestrator and session guardian to
// gin HTTP handlers, following the teacher's factory-function-returning-
// gin.HandlerFunc idiom and typed request/response structs.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
	"riskguard/internal/stepup"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
}

type registerResponse struct {
	PrincipalID string `json:"principal_id,omitempty"`
	Conflict    bool   `json:"conflict,omitempty"`
}

// RegisterHandler creates a principal, or reports a 409 conflict without
// revealing whether the email or the phone number collided.
func RegisterHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, conflict, err := orch.Register(req.Email, req.Phone, req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}
		if conflict != nil {
			c.JSON(http.StatusConflict, registerResponse{Conflict: true})
			return
		}
		c.JSON(http.StatusCreated, registerResponse{PrincipalID: p.ID.String()})
	}
}

type verifyRequest struct {
	PrincipalID string `json:"principal_id" binding:"required"`
}

type onboardingTokenResponse struct {
	OnboardingToken string `json:"onboarding_token"`
	ExpiresIn       int    `json:"expires_in"`
}

// VerifyHandler marks a principal's email verified and mints an
// onboarding-scope token.
func VerifyHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
			return
		}
		token, expiresIn, err := orch.Verify(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
			return
		}
		c.JSON(http.StatusOK, onboardingTokenResponse{OnboardingToken: token, ExpiresIn: expiresIn})
	}
}

type deviceRequest struct {
	UserAgent string `json:"user_agent"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	Screen    string `json:"screen"`
	Timezone  string `json:"timezone"`
}

type geoRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
	HasFix   bool    `json:"has_fix"`
}

type onboardRequest struct {
	PrincipalID string        `json:"principal_id" binding:"required"`
	Device      deviceRequest `json:"device"`
	Geo         geoRequest    `json:"geo"`
	Question    string        `json:"question"`
	Answer      string        `json:"answer"`
}

// OnboardHandler captures a principal's initial device/geo baseline and an
// optional context/ambient challenge question.
func OnboardHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req onboardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
			return
		}
		in := stepup.OnboardingInput{
			Device:   riskengine.RawDevice(req.Device),
			Geo:      riskengine.Geo{Lat: req.Geo.Lat, Lon: req.Geo.Lon, Accuracy: req.Geo.Accuracy, HasFix: req.Geo.HasFix},
			Question: req.Question,
			Answer:   req.Answer,
		}
		if err := orch.Onboard(id, in); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "onboarding failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "onboarded"})
	}
}

type typingRequest struct {
	WPM         float64 `json:"wpm"`
	ErrorRate   float64 `json:"error_rate"`
	KeyTimingMs float64 `json:"key_timing_ms"`
	HasData     bool    `json:"has_data"`
}

type mouseRequest struct {
	PathLength float64 `json:"path_length"`
	Clicks     float64 `json:"clicks"`
	HasData    bool    `json:"has_data"`
}

type challengeRequest struct {
	Device  deviceRequest `json:"device"`
	Geo     geoRequest    `json:"geo"`
	Typing  typingRequest `json:"typing"`
	Mouse   mouseRequest  `json:"mouse"`
}

type loginRequest struct {
	Email     string           `json:"email" binding:"required,email"`
	Password  string           `json:"password" binding:"required"`
	Challenge challengeRequest `json:"challenge"`
}

type loginResponse struct {
	Decision     string   `json:"decision"`
	State        string   `json:"state,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
	Methods      []string `json:"methods,omitempty"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
}

func toChallenge(req challengeRequest, ip string) riskengine.Challenge {
	return riskengine.Challenge{
		Device:    riskengine.RawDevice(req.Device),
		HasDevice: req.Device.UserAgent != "" || req.Device.Browser != "",
		Geo:       riskengine.Geo{Lat: req.Geo.Lat, Lon: req.Geo.Lon, Accuracy: req.Geo.Accuracy, HasFix: req.Geo.HasFix},
		HasGeo:    req.Geo.HasFix,
		IP:        ip,
		Typing:    riskengine.TypingMetrics(req.Typing),
		Mouse:     riskengine.MouseMetrics(req.Mouse),

		HasBehavioralChallenge: req.Typing.HasData || req.Mouse.HasData,
	}
}

func toDecisionResponse(d stepup.Decision) loginResponse {
	return loginResponse{
		Decision: d.Kind, State: string(d.State), Reasons: d.Reasons, Methods: d.Methods,
		AccessToken: d.AccessToken, RefreshToken: d.RefreshToken, ExpiresIn: d.ExpiresIn,
	}
}

// LoginHandler runs the login-time risk challenge and, depending on the
// computed level, allows, challenges, or blocks the attempt.
func LoginHandler(orch *stepup.Orchestrator, resolveIP ipResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		clientIP := c.ClientIP()
		ipInfo := resolveIP(c, clientIP)
		challenge := toChallenge(req.Challenge, clientIP)

		decision, err := orch.Login(stepup.LoginInput{Email: req.Email, Password: req.Password, Challenge: challenge, IP: ipInfo})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		switch decision.Kind {
		case stepup.DecisionBlock:
			c.JSON(http.StatusForbidden, toDecisionResponse(decision))
		case stepup.DecisionChallenge:
			c.JSON(http.StatusAccepted, toDecisionResponse(decision))
		default:
			c.JSON(http.StatusOK, toDecisionResponse(decision))
		}
	}
}

// ipResolver enriches a client IP with ASN/geo/denylist/allowlist/known-
// network flags ahead of a scoring pass.
type ipResolver func(c *gin.Context, ip string) riskengine.IPInfo

type stepUpRequest struct {
	PrincipalID string           `json:"principal_id" binding:"required"`
	Method      string           `json:"method" binding:"required"`
	Answer      string           `json:"answer"`
	Challenge   challengeRequest `json:"challenge"`
}

// StepUpHandler dispatches a step-up attempt to the named method.
func StepUpHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stepUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
			return
		}
		clientIP := c.ClientIP()
		challenge := toChallenge(req.Challenge, clientIP)
		decision, err := orch.StepUp(stepup.StepUpInput{
			PrincipalID: id, Method: req.Method, Challenge: challenge,
			IP: riskengine.IPInfo{Addr: clientIP, Prefix: policy.Prefix(clientIP)}, Answer: req.Answer,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "step-up failed"})
			return
		}
		if decision.Kind == stepup.DecisionBlock {
			c.JSON(http.StatusForbidden, toDecisionResponse(decision))
			return
		}
		c.JSON(http.StatusOK, toDecisionResponse(decision))
	}
}

type magicLinkRequest struct {
	PrincipalID string `json:"principal_id" binding:"required"`
}

// SendMagicLinkHandler mints a single-use login token for out-of-band
// delivery. Delivery itself (email/SMS) is an external collaborator.
func SendMagicLinkHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req magicLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid principal_id"})
			return
		}
		token, err := orch.SendMagicLink(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue magic link"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshHandler exchanges a refresh-scoped token for a new access token,
// rejecting any token that is not refresh-scoped.
func RefreshHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision, err := orch.Refresh(req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
			return
		}
		if decision.Kind == stepup.DecisionBlock {
			c.JSON(http.StatusUnauthorized, toDecisionResponse(decision))
			return
		}
		c.JSON(http.StatusOK, toDecisionResponse(decision))
	}
}

type magicLinkVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyMagicLinkHandler redeems a magic-link token.
func VerifyMagicLinkHandler(orch *stepup.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req magicLinkVerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision, err := orch.VerifyMagicLink(req.Token)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toDecisionResponse(decision))
	}
}
