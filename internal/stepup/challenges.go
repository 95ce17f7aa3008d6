package stepup

import (
	"fmt"

	"github.com/google/uuid"

	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
	"riskguard/internal/signature"
	"riskguard/internal/store"
	"riskguard/pkg/tokens"
)

// StepUpInput bundles the signals one step-up attempt supplies.
type StepUpInput struct {
	PrincipalID uuid.UUID
	Method      string
	Challenge   riskengine.Challenge
	IP          riskengine.IPInfo
	Answer      string // for context/ambient
}

// StepUp dispatches to the named method and, on success, issues the same
// access/refresh token pair a low-risk login would.
func (o *Orchestrator) StepUp(in StepUpInput) (Decision, error) {
	switch in.Method {
	case MethodBehavioral:
		return o.stepUpBehavioral(in)
	case MethodTrustedDevice:
		return o.stepUpTrustedDevice(in)
	case MethodContext, MethodAmbient:
		return o.stepUpContext(in)
	case MethodWebAuthn:
		return o.stepUpWebAuthn(in)
	default:
		return Decision{Kind: DecisionBlock, Reasons: []string{"unsupported step-up method"}}, nil
	}
}

func (o *Orchestrator) stepUpBehavioral(in StepUpInput) (Decision, error) {
	profileModel, err := o.profiles.ByPrincipal(in.PrincipalID)
	if err != nil {
		return Decision{}, fmt.Errorf("load profile: %w", err)
	}
	base := store.ToBaseline(profileModel)
	th := riskengine.Thresholds{Medium: o.policy.MediumThreshold, High: o.policy.HighThreshold}

	in.Challenge.HasBehavioralChallenge = true
	result := riskengine.ScoreLogin(in.Challenge, in.IP, base, th)

	if result.Score > 20 {
		o.logStage(in.PrincipalID, "behavioral_step_up", MethodBehavioral, DecisionBlock, result, in.Challenge.IP)
		return Decision{Kind: DecisionBlock, Reasons: result.Reasons}, nil
	}

	p, err := o.principals.ByID(in.PrincipalID)
	if err != nil {
		return Decision{}, err
	}
	ipPrefix := policy.Prefix(in.Challenge.IP)
	if err := o.learnAndIssue(p, profileModel, base, in.Challenge, ipPrefix, result, "behavioral_step_up"); err != nil {
		return Decision{}, err
	}
	o.logStage(in.PrincipalID, "behavioral_step_up", MethodBehavioral, DecisionAllow, result, in.Challenge.IP)
	return o.issueSessionTokens(p, in.Challenge, ipPrefix)
}

// baselineShouldLearnResidual mirrors baseline.ShouldLearn's
// "behavioral_step_up" branch; kept as a named predicate since the risk
// score threshold it checks is meaningful on its own in tests.
func baselineShouldLearnResidual(score int) bool { return score <= 10 }

func (o *Orchestrator) stepUpTrustedDevice(in StepUpInput) (Decision, error) {
	device := riskengine.Canonicalize(in.Challenge.Device)
	deviceHash := signature.Derive(device, "")

	trusted, err := o.trusted.IsTrusted(in.PrincipalID, deviceHash, in.Challenge.IP)
	if err != nil {
		return Decision{}, err
	}
	if !trusted {
		o.logStage(in.PrincipalID, "step_up", MethodTrustedDevice, DecisionBlock, riskengine.Result{}, in.Challenge.IP)
		return Decision{Kind: DecisionBlock, Reasons: []string{"device not trusted"}}, nil
	}
	p, err := o.principals.ByID(in.PrincipalID)
	if err != nil {
		return Decision{}, err
	}
	o.logStage(in.PrincipalID, "step_up", MethodTrustedDevice, DecisionAllow, riskengine.Result{}, in.Challenge.IP)
	return o.issueSessionTokens(p, in.Challenge, policy.Prefix(in.Challenge.IP))
}

func (o *Orchestrator) stepUpContext(in StepUpInput) (Decision, error) {
	ok, err := o.challenges.Verify(in.PrincipalID, in.Answer)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		o.logStage(in.PrincipalID, "step_up", MethodContext, DecisionBlock, riskengine.Result{}, in.Challenge.IP)
		return Decision{Kind: DecisionBlock, Reasons: []string{"incorrect answer"}}, nil
	}
	p, err := o.principals.ByID(in.PrincipalID)
	if err != nil {
		return Decision{}, err
	}
	profileModel, err := o.profiles.ByPrincipal(in.PrincipalID)
	if err != nil {
		return Decision{}, fmt.Errorf("load profile: %w", err)
	}
	base := store.ToBaseline(profileModel)
	ipPrefix := policy.Prefix(in.Challenge.IP)
	stage := "context_step_up"
	if in.Method == MethodAmbient {
		stage = "ambient_step_up"
	}
	if err := o.learnAndIssue(p, profileModel, base, in.Challenge, ipPrefix, riskengine.Result{Level: riskengine.LevelLow}, stage); err != nil {
		return Decision{}, err
	}
	o.logStage(in.PrincipalID, "step_up", MethodContext, DecisionAllow, riskengine.Result{}, in.Challenge.IP)
	return o.issueSessionTokens(p, in.Challenge, ipPrefix)
}

func (o *Orchestrator) stepUpWebAuthn(in StepUpInput) (Decision, error) {
	ok, err := o.webauthn.FinishAuthentication(in.PrincipalID.String(), nil)
	if err != nil {
		return Decision{}, fmt.Errorf("webauthn ceremony: %w", err)
	}
	if !ok {
		return Decision{Kind: DecisionBlock, Reasons: []string{"webauthn assertion failed"}}, nil
	}
	p, err := o.principals.ByID(in.PrincipalID)
	if err != nil {
		return Decision{}, err
	}
	return o.issueSessionTokens(p, in.Challenge, policy.Prefix(in.Challenge.IP))
}

// SendMagicLink issues a single-use login token tied to principalID, valid
// for magicLinkTTL, to be delivered out-of-band (email/SMS delivery is an
// external collaborator, not implemented here).
func (o *Orchestrator) SendMagicLink(principalID uuid.UUID) (string, error) {
	token := uuid.NewString()
	if err := o.magicLinks.Create(principalID, token, magicLinkTTL); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyMagicLink redeems a magic-link token, returning a distinct error
// for not-found/already-used/expired so the caller can surface the right
// rejection reason.
func (o *Orchestrator) VerifyMagicLink(token string) (Decision, error) {
	link, err := o.magicLinks.Consume(token)
	if err != nil {
		return Decision{}, err
	}
	p, err := o.principals.ByID(link.PrincipalID)
	if err != nil {
		return Decision{}, err
	}
	access, err := o.minter.Mint(p.ID.String(), tokens.ScopeAccess, "", accessTokenTTL)
	if err != nil {
		return Decision{}, err
	}
	o.logStage(p.ID, "step_up", MethodMagicLink, DecisionAllow, riskengine.Result{}, "")
	return Decision{Kind: DecisionAllow, State: StateAuthenticated, AccessToken: access, ExpiresIn: int(accessTokenTTL.Seconds())}, nil
}
