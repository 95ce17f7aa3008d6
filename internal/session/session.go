// Package session implements the session guardian: low-cadence in-session
// telemetry re-scoring that writes a keyed, TTL'd risk state consumed by
// the session-risk middleware gate.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
	"riskguard/internal/signature"
)

// State is the hot-path risk state for one session, matching
// internal/store.SessionState.
type State struct {
	RiskLevel string
	RiskScore int
	Reason    string
	UpdatedAt time.Time
}

// PutFunc/GetFunc adapt a concrete session store (internal/store.SessionStore)
// without this package importing internal/store, keeping the dependency
// direction store -> session instead of session -> store.
type PutFunc func(ctx context.Context, sessionID string, level string, score int, reason string, at time.Time) error
type GetFunc func(ctx context.Context, sessionID string) (level string, score int, reason string, updatedAt time.Time, ok bool, err error)

// Guardian re-scores in-session telemetry and persists the result.
type Guardian struct {
	put    PutFunc
	get    GetFunc
	policy *policy.Store
	log    *zap.Logger
}

func NewGuardian(put PutFunc, get GetFunc, p *policy.Store, log *zap.Logger) *Guardian {
	return &Guardian{put: put, get: get, policy: p, log: log}
}

// IngestTelemetry re-scores one session's in-session telemetry: validates
// the behavior signature bound to the access token, computes a session
// score, and persists the result with a refreshed TTL.
func (g *Guardian) IngestTelemetry(
	ctx context.Context,
	sessionID string,
	telemetry riskengine.SessionTelemetry,
	challenge riskengine.Challenge,
	ip riskengine.IPInfo,
	base riskengine.Baseline,
	tokenSignature string,
	ipPrefix string,
) (State, error) {
	th := riskengine.Thresholds{Medium: g.policy.MediumThreshold, High: g.policy.HighThreshold}

	var device riskengine.Device
	if challenge.HasDevice {
		device = riskengine.Canonicalize(challenge.Device)
	}
	if ok, reason := signature.Validate(tokenSignature, device, ipPrefix); !ok {
		state := State{RiskLevel: riskengine.LevelMedium, RiskScore: 50, Reason: reason, UpdatedAt: time.Now()}
		if err := g.put(ctx, sessionID, state.RiskLevel, state.RiskScore, state.Reason, state.UpdatedAt); err != nil {
			return state, fmt.Errorf("persist signature-mismatch session state: %w", err)
		}
		g.log.Warn("behavior signature mismatch", zap.String("session_id", sessionID))
		return state, nil
	}

	result := riskengine.ScoreSession(telemetry, challenge, ip, base, th)
	state := State{RiskLevel: result.Level, RiskScore: result.Score, UpdatedAt: time.Now()}
	if len(result.Reasons) > 0 {
		state.Reason = result.Reasons[0]
	}
	if err := g.put(ctx, sessionID, state.RiskLevel, state.RiskScore, state.Reason, state.UpdatedAt); err != nil {
		return state, fmt.Errorf("persist session state: %w", err)
	}
	return state, nil
}

// Status reads a session's current risk state.
func (g *Guardian) Status(ctx context.Context, sessionID string) (State, bool, error) {
	level, score, reason, updatedAt, ok, err := g.get(ctx, sessionID)
	if err != nil {
		return State{}, false, fmt.Errorf("read session state: %w", err)
	}
	if !ok {
		return State{}, false, nil
	}
	return State{RiskLevel: level, RiskScore: score, Reason: reason, UpdatedAt: updatedAt}, true, nil
}

// Gate maps a session's current risk level to a middleware decision, per
// the session-risk enforcement contract: high blocks, medium requires
// step-up, everything else (including no session record) allows.
func Gate(level string) (allow bool, stepUp bool) {
	switch level {
	case riskengine.LevelHigh:
		return false, false
	case riskengine.LevelMedium:
		return false, true
	default:
		return true, false
	}
}
