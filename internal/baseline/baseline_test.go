package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riskguard/internal/riskengine"
)

func TestEwmaUpdateSeedsVarianceOnFirstObservation(t *testing.T) {
	z := ewmaUpdate(riskengine.ZBaseline{}, 60)
	assert.Equal(t, 60.0, z.Mean)
	assert.Equal(t, seedVariance, z.Var)
	assert.True(t, z.HasData)
}

func TestEwmaUpdateMovesMeanTowardNewObservation(t *testing.T) {
	z := riskengine.ZBaseline{Mean: 50, Var: 10, HasData: true}
	next := ewmaUpdate(z, 60)
	assert.InDelta(t, 53.0, next.Mean, 0.001)
}

func TestWarmupStreakFlipsBaselineStable(t *testing.T) {
	existing := riskengine.Baseline{}
	snap := Snapshot{}
	streak := 0
	stable := false
	version := 0
	for i := 0; i < warmupStreak; i++ {
		obs := Observation{HasDevice: true, Device: riskengine.RawDevice{Browser: "Chrome 119"}}
		s := Update(existing, streak, stable, version, obs)
		streak = s.LowRiskStreak
		stable = s.BaselineStable
		version = s.BaselineVersion
		snap = s
	}
	assert.Equal(t, warmupStreak, snap.LowRiskStreak)
	assert.True(t, snap.BaselineStable)
}

func TestShouldLearnGate(t *testing.T) {
	assert.True(t, ShouldLearn("login", riskengine.LevelLow, 0))
	assert.False(t, ShouldLearn("login", riskengine.LevelMedium, 0))
	assert.True(t, ShouldLearn("behavioral_step_up", "", 10))
	assert.False(t, ShouldLearn("behavioral_step_up", "", 11))
	assert.True(t, ShouldLearn("context_step_up", "", 0))
	assert.True(t, ShouldLearn("ambient_step_up", "", 0))
}

func TestTrimHistoryBoundsToThree(t *testing.T) {
	history := []int{1, 2}
	history = TrimHistory(history, 3)
	history = TrimHistory(history, 4)
	assert.Equal(t, []int{2, 3, 4}, history)
}
