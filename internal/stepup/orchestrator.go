package stepup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"riskguard/internal/alerts"
	"riskguard/internal/baseline"
	"riskguard/internal/models"
	"riskguard/internal/network"
	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
	"riskguard/internal/signature"
	"riskguard/internal/store"
	"riskguard/pkg/tokens"
)

// Orchestrator drives the step-up state machine. It never panics or
// returns an HTTP status of its own; internal/handlers maps a Decision to
// transport at the edge.
type Orchestrator struct {
	principals  *store.PrincipalStore
	profiles    *store.ProfileStore
	audit       *store.AuditStore
	magicLinks  *store.MagicLinkStore
	trusted     *store.TrustedDeviceStore
	challenges  *store.ChallengeAnswerStore
	net         *network.Tracker
	minter      *tokens.Minter
	policy      *policy.Store
	alerts      *alerts.Bus
	webauthn    WebAuthnCeremony
	log         *zap.Logger
}

func New(
	principals *store.PrincipalStore,
	profiles *store.ProfileStore,
	audit *store.AuditStore,
	magicLinks *store.MagicLinkStore,
	trusted *store.TrustedDeviceStore,
	challenges *store.ChallengeAnswerStore,
	net *network.Tracker,
	minter *tokens.Minter,
	p *policy.Store,
	bus *alerts.Bus,
	webauthn WebAuthnCeremony,
	log *zap.Logger,
) *Orchestrator {
	if webauthn == nil {
		webauthn = NoopWebAuthn{}
	}
	return &Orchestrator{
		principals: principals, profiles: profiles, audit: audit,
		magicLinks: magicLinks, trusted: trusted, challenges: challenges,
		net: net, minter: minter, policy: p, alerts: bus, webauthn: webauthn, log: log,
	}
}

// Register creates a principal, or reports a conflict when the email or
// phone is already taken. The Conflict records which identifier collided
// and, when the email matches an existing principal, that principal's
// verified/onboarding flags; the HTTP handler does not reveal which.
func (o *Orchestrator) Register(email, phone, password string) (*models.Principal, *Conflict, error) {
	emailTaken, phoneTaken := o.principals.ExistsByEmailOrPhone(email, phone)
	if emailTaken || phoneTaken {
		existing, _ := o.principals.ByEmail(email)
		conflict := &Conflict{EmailTaken: emailTaken, PhoneTaken: phoneTaken}
		if existing != nil {
			conflict.Verified = existing.EmailVerified
			conflict.OnboardingComplete = existing.OnboardingComplete
		}
		return nil, conflict, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	p := &models.Principal{Email: email, Phone: phone, PasswordHash: string(hash)}
	if err := o.principals.Create(p); err != nil {
		return nil, nil, err
	}
	o.logStage(p.ID, "register", "", DecisionAllow, riskengine.Result{}, "")
	return p, nil, nil
}

// Verify marks a principal's email verified and mints a short-lived
// onboarding-scope token.
func (o *Orchestrator) Verify(principalID uuid.UUID) (string, int, error) {
	p, err := o.principals.ByID(principalID)
	if err != nil {
		return "", 0, fmt.Errorf("load principal: %w", err)
	}
	p.EmailVerified = true
	if err := o.principals.Save(p); err != nil {
		return "", 0, err
	}
	token, err := o.minter.Mint(p.ID.String(), tokens.ScopeOnboarding, "", onboardingTokenTTL)
	if err != nil {
		return "", 0, err
	}
	o.logStage(p.ID, "verify", "", DecisionAllow, riskengine.Result{}, "")
	return token, int(onboardingTokenTTL.Seconds()), nil
}

// OnboardingInput captures the signals collected during onboarding.
type OnboardingInput struct {
	Device   riskengine.RawDevice
	Geo      riskengine.Geo
	Question string
	Answer   string
}

// Onboard captures a principal's initial baseline and marks onboarding
// complete.
func (o *Orchestrator) Onboard(principalID uuid.UUID, in OnboardingInput) error {
	p, err := o.principals.ByID(principalID)
	if err != nil {
		return fmt.Errorf("load principal: %w", err)
	}
	device := riskengine.Canonicalize(in.Device)
	profile := &models.Profile{
		PrincipalID:  p.ID,
		BrowserBrand: device.BrowserBrand, OSFamily: device.OSFamily,
		ScreenClass: device.ScreenClass, ScreenWH: device.ScreenRaw, Timezone: device.Timezone,
		GeoLat: in.Geo.Lat, GeoLon: in.Geo.Lon, GeoAcc: in.Geo.Accuracy,
	}
	if err := o.profiles.Create(profile); err != nil {
		return err
	}
	if in.Question != "" {
		if err := o.challenges.Set(p.ID, in.Question, in.Answer); err != nil {
			return err
		}
	}
	p.OnboardingComplete = true
	if err := o.principals.Save(p); err != nil {
		return err
	}
	o.logStage(p.ID, "onboarding", "", DecisionAllow, riskengine.Result{}, "")
	return nil
}

// LoginInput bundles everything a login attempt supplies.
type LoginInput struct {
	Email, Password string
	Challenge        riskengine.Challenge
	IP               riskengine.IPInfo
}

// Login authenticates credentials and runs the login-time risk challenge.
// Low risk mints an access+refresh token pair and learns the baseline;
// medium risk returns a Challenge decision naming permitted step-up
// methods; high risk blocks and emits an alert.
func (o *Orchestrator) Login(in LoginInput) (Decision, error) {
	p, err := o.principals.ByEmail(in.Email)
	if err != nil {
		return Decision{Kind: DecisionBlock, Reasons: []string{"invalid credentials"}}, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(in.Password)) != nil {
		return Decision{Kind: DecisionBlock, Reasons: []string{"invalid credentials"}}, nil
	}
	if !p.EmailVerified {
		return Decision{Kind: DecisionBlock, Reasons: []string{"email not verified"}}, nil
	}
	if !p.OnboardingComplete {
		return Decision{Kind: DecisionBlock, Reasons: []string{"onboarding incomplete"}}, nil
	}

	profileModel, err := o.profiles.ByPrincipal(p.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("load profile: %w", err)
	}
	base := store.ToBaseline(profileModel)

	ipPrefix := policy.Prefix(in.Challenge.IP)
	in.IP.IsKnown = network.Contains(base.KnownNetworkPrefixes, in.Challenge.IP)
	in.IP.IsDenied = o.policy.IsDenied(in.Challenge.IP)
	in.IP.IsAllowed = o.policy.IsAllowed(in.Challenge.IP)
	in.IP.IsCarrier = o.policy.IsCarrierASN(in.IP.ASN)

	th := riskengine.Thresholds{Medium: o.policy.MediumThreshold, High: o.policy.HighThreshold}
	result := riskengine.ScoreLogin(in.Challenge, in.IP, base, th)

	switch result.Level {
	case riskengine.LevelHigh:
		o.alerts.Emit("login_blocked", map[string]any{"principal_id": p.ID.String(), "score": result.Score})
		o.logStage(p.ID, "login", "", DecisionBlock, result, in.Challenge.IP)
		return Decision{Kind: DecisionBlock, State: StateBlocked, Reasons: result.Reasons}, nil

	case riskengine.LevelMedium:
		o.logStage(p.ID, "login", "", DecisionChallenge, result, in.Challenge.IP)
		return Decision{
			Kind: DecisionChallenge, State: StateChallenged, Reasons: result.Reasons,
			Methods: []string{MethodBehavioral, MethodTrustedDevice, MethodMagicLink, MethodContext},
		}, nil

	default: // low
		if err := o.learnAndIssue(p, profileModel, base, in.Challenge, ipPrefix, result, "login"); err != nil {
			return Decision{}, err
		}
		return o.issueSessionTokens(p, in.Challenge, ipPrefix)
	}
}

// Refresh exchanges a refresh-scoped token for a new access token. Any
// token that is not refresh-scoped, expired, or otherwise invalid is
// rejected without minting.
func (o *Orchestrator) Refresh(refreshToken string) (Decision, error) {
	claims, err := o.minter.Verify(refreshToken, tokens.ScopeRefresh)
	if err != nil {
		return Decision{Kind: DecisionBlock, Reasons: []string{"invalid refresh token"}}, nil
	}
	access, err := o.minter.Mint(claims.Subject, tokens.ScopeAccess, claims.BehaviorSignature, accessTokenTTL)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Kind: DecisionAllow, State: StateAuthenticated,
		AccessToken: access, ExpiresIn: int(accessTokenTTL.Seconds()),
	}, nil
}

func (o *Orchestrator) issueSessionTokens(p *models.Principal, ch riskengine.Challenge, ipPrefix string) (Decision, error) {
	device := riskengine.Canonicalize(ch.Device)
	sig := signature.Derive(device, ipPrefix)

	access, err := o.minter.Mint(p.ID.String(), tokens.ScopeAccess, sig, accessTokenTTL)
	if err != nil {
		return Decision{}, err
	}
	refresh, err := o.minter.Mint(p.ID.String(), tokens.ScopeRefresh, "", refreshTokenTTL)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Kind: DecisionAllow, State: StateAuthenticated,
		AccessToken: access, RefreshToken: refresh, ExpiresIn: int(accessTokenTTL.Seconds()),
	}, nil
}

func (o *Orchestrator) learnAndIssue(p *models.Principal, profileModel *models.Profile, base riskengine.Baseline, ch riskengine.Challenge, ipPrefix string, result riskengine.Result, stage string) error {
	if !baseline.ShouldLearn(stage, result.Level, result.Score) {
		return o.net.RecordLogin(context.Background(), p.ID, ch.IP)
	}

	obs := baseline.Observation{
		Device: ch.Device, HasDevice: ch.HasDevice,
		Geo: ch.Geo, HasGeo: ch.HasGeo,
		Typing: ch.Typing, Mouse: ch.Mouse,
		ObservedAt: time.Now(),
	}
	snap := baseline.Update(base, profileOr(profileModel).LowRiskStreak, profileOr(profileModel).BaselineStable, profileOr(profileModel).BaselineVersion, obs)

	if profileModel == nil {
		profileModel = &models.Profile{PrincipalID: p.ID}
	}
	profileModel.BrowserBrand, profileModel.OSFamily = snap.Device.BrowserBrand, snap.Device.OSFamily
	profileModel.ScreenClass, profileModel.ScreenWH, profileModel.Timezone = snap.Device.ScreenClass, snap.Device.ScreenRaw, snap.Device.Timezone
	if snap.HasGeo {
		profileModel.GeoLat, profileModel.GeoLon, profileModel.GeoAcc = snap.GeoLat, snap.GeoLon, snap.GeoAcc
	}
	profileModel.IPCity, profileModel.IPRegion, profileModel.IPCountry = snap.IPCity, snap.IPRegion, snap.IPCountry
	store.ApplyBaselineUpdate(profileModel, snap.TypingWPM, snap.TypingErr, snap.TypingTiming, snap.MousePath, snap.MouseClicks)
	profileModel.LowRiskStreak = snap.LowRiskStreak
	profileModel.BaselineStable = snap.BaselineStable
	profileModel.BaselineVersion = snap.BaselineVersion
	profileModel.BehaviorSignature = signature.Derive(snap.Device, ipPrefix)

	if profileModel.ID == uuid.Nil {
		if err := o.profiles.Create(profileModel); err != nil {
			o.log.Warn("baseline create failed", zap.Error(err))
			return nil // best-effort per spec
		}
	} else if err := o.profiles.Save(profileModel); err != nil {
		o.log.Warn("baseline save failed", zap.Error(err))
		return nil
	}

	if err := o.net.RecordLogin(context.Background(), p.ID, ch.IP); err != nil {
		o.log.Warn("known-network record failed", zap.Error(err))
	}
	if prefix, promote, err := o.net.ShouldPromote(p.ID, ch.IP); err == nil && promote {
		known := network.Add(store.KnownNetworks(profileModel), prefix)
		store.SetKnownNetworks(profileModel, known)
		_ = o.profiles.Save(profileModel)
	}
	return nil
}

func profileOr(p *models.Profile) *models.Profile {
	if p != nil {
		return p
	}
	return &models.Profile{}
}

func (o *Orchestrator) logStage(principalID uuid.UUID, stage, method, outcome string, result riskengine.Result, ip string) {
	_ = o.audit.Append(principalID, stage, method, outcome, result.Score, result.Level, result.Reasons, ip)
}
