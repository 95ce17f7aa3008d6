// Package baseline implements the EWMA-based behavioural/device/geo
// baseline learner: it folds a fresh observation into a principal's
// profile, tracks a warm-up streak, and keeps a bounded version history.
package baseline

import (
	"time"

	"riskguard/internal/riskengine"
)

const (
	alpha          = 0.3
	warmupStreak   = 5
	maxHistory     = 3
	seedVariance   = 1.0
)

// Observation is the set of signals a single successful (or gated) login /
// step-up supplies for baseline learning.
type Observation struct {
	Device   riskengine.RawDevice
	HasDevice bool

	Geo    riskengine.Geo
	HasGeo bool

	IPCity, IPRegion, IPCountry string

	Typing riskengine.TypingMetrics
	Mouse  riskengine.MouseMetrics

	ObservedAt time.Time
}

// Snapshot is the updated scalar fields Update computes; the caller (which
// owns the GORM model) is responsible for writing them back.
type Snapshot struct {
	Device riskengine.Device

	GeoLat, GeoLon, GeoAcc float64
	HasGeo                 bool

	IPCity, IPRegion, IPCountry string

	TypingWPM, TypingErr, TypingTiming riskengine.ZBaseline
	MousePath, MouseClicks             riskengine.ZBaseline

	LowRiskStreak   int
	BaselineStable  bool
	BaselineVersion int
}

// ewmaUpdate folds x into an existing (mean, var) pair. The first
// observation seeds mean=x with a fixed starting variance, since a single
// sample carries no variance information of its own.
func ewmaUpdate(z riskengine.ZBaseline, x float64) riskengine.ZBaseline {
	if !z.HasData {
		return riskengine.ZBaseline{Mean: x, Var: seedVariance, HasData: true}
	}
	newMean := alpha*x + (1-alpha)*z.Mean
	delta := x - newMean
	newVar := alpha*delta*delta + (1-alpha)*z.Var
	return riskengine.ZBaseline{Mean: newMean, Var: newVar, HasData: true}
}

// Update folds one gated observation into the existing baseline (zero
// value if this is the principal's first). The caller decides whether the
// learning gate passed (low-risk login, residual-risk behavioral step-up,
// or a passed context/ambient challenge) before calling this.
func Update(existing riskengine.Baseline, streak int, stable bool, version int, obs Observation) Snapshot {
	snap := Snapshot{
		LowRiskStreak:   streak + 1,
		BaselineVersion: version + 1,
	}
	snap.BaselineStable = stable || snap.LowRiskStreak >= warmupStreak

	if obs.HasDevice {
		snap.Device = riskengine.Canonicalize(obs.Device)
	} else {
		snap.Device = existing.Device
	}

	if obs.HasGeo && obs.Geo.HasFix {
		snap.GeoLat, snap.GeoLon, snap.GeoAcc = obs.Geo.Lat, obs.Geo.Lon, obs.Geo.Accuracy
		snap.HasGeo = true
	} else {
		snap.GeoLat, snap.GeoLon, snap.GeoAcc = existing.Geo.Lat, existing.Geo.Lon, existing.Geo.Accuracy
		snap.HasGeo = existing.Geo.HasFix
	}

	snap.IPCity, snap.IPRegion, snap.IPCountry = existing.IPCity, existing.IPRegion, existing.IPCountry
	if obs.IPCity != "" || obs.IPRegion != "" || obs.IPCountry != "" {
		snap.IPCity, snap.IPRegion, snap.IPCountry = obs.IPCity, obs.IPRegion, obs.IPCountry
	}

	snap.TypingWPM, snap.TypingErr, snap.TypingTiming = existing.TypingWPM, existing.TypingErr, existing.TypingTiming
	if obs.Typing.HasData {
		snap.TypingWPM = ewmaUpdate(existing.TypingWPM, obs.Typing.WPM)
		snap.TypingErr = ewmaUpdate(existing.TypingErr, obs.Typing.ErrorRate)
		snap.TypingTiming = ewmaUpdate(existing.TypingTiming, obs.Typing.KeyTimingMs)
	}

	snap.MousePath, snap.MouseClicks = existing.MousePath, existing.MouseClicks
	if obs.Mouse.HasData {
		snap.MousePath = ewmaUpdate(existing.MousePath, obs.Mouse.PathLength)
		snap.MouseClicks = ewmaUpdate(existing.MouseClicks, obs.Mouse.Clicks)
	}

	return snap
}

// TrimHistory bounds a version-history slice to the most recent maxHistory
// entries, matching the original's `$push` + `$slice:-3` behaviour.
func TrimHistory[T any](history []T, add T) []T {
	history = append(history, add)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return history
}

// ShouldLearn implements the learning-gate rule: baseline updates only
// apply after a low-risk login, a behavioral step-up whose residual score
// is small, or a passed context/ambient challenge.
func ShouldLearn(stage, riskLevel string, residualScore int) bool {
	switch stage {
	case "login":
		return riskLevel == riskengine.LevelLow
	case "behavioral_step_up":
		return residualScore <= 10
	case "context_step_up", "ambient_step_up":
		return true
	default:
		return false
	}
}
