package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
)

func TestGateMapsLevelsToDecisions(t *testing.T) {
	allow, stepUp := Gate(riskengine.LevelHigh)
	assert.False(t, allow)
	assert.False(t, stepUp)

	allow, stepUp = Gate(riskengine.LevelMedium)
	assert.False(t, allow)
	assert.True(t, stepUp)

	allow, stepUp = Gate(riskengine.LevelLow)
	assert.True(t, allow)
	assert.False(t, stepUp)
}

func TestIngestTelemetryForcesMediumOnSignatureMismatch(t *testing.T) {
	var stored State
	put := func(ctx context.Context, sessionID, level string, score int, reason string, at time.Time) error {
		stored = State{RiskLevel: level, RiskScore: score, Reason: reason, UpdatedAt: at}
		return nil
	}
	get := func(ctx context.Context, sessionID string) (string, int, string, time.Time, bool, error) {
		return "", 0, "", time.Time{}, false, nil
	}

	p := &policy.Store{MediumThreshold: 40, HighThreshold: 60}
	g := NewGuardian(put, get, p, zap.NewNop())

	ch := riskengine.Challenge{HasDevice: true, Device: riskengine.RawDevice{Browser: "Chrome 119"}}
	res, err := g.IngestTelemetry(context.Background(), "sess-1", riskengine.SessionTelemetry{}, ch, riskengine.IPInfo{}, riskengine.Baseline{}, "stale-signature", "203.0.113.0/24")
	require.NoError(t, err)
	assert.Equal(t, riskengine.LevelMedium, res.RiskLevel)
	assert.Equal(t, "behavior_signature_mismatch", res.Reason)
	assert.Equal(t, stored.RiskLevel, res.RiskLevel)
}
