// Package telemetry runs the service's background jobs: geo event
// compaction/retention, alert draining, and a naive drift scan over recent
// step-up log entries, mirroring the teacher's hourly-cleanup goroutine
// pattern in main.go.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"riskguard/internal/alerts"
	"riskguard/internal/store"
)

const (
	geoRawRetention  = 30 * 24 * time.Hour
	geoTileRetention = 180 * 24 * time.Hour

	driftScanInterval     = 15 * time.Minute
	driftScanWindow       = 24 * time.Hour
	driftScanPerPrincipal = 5
)

// DriftReport flags a principal whose recent risk scores trend upward.
type DriftReport struct {
	PrincipalID string
	Worsening   bool
}

// Worker owns the periodic goroutines.
type Worker struct {
	geo   *store.GeoStore
	audit *store.AuditStore
	bus   *alerts.Bus
	log   *zap.Logger
}

func NewWorker(geo *store.GeoStore, audit *store.AuditStore, bus *alerts.Bus, log *zap.Logger) *Worker {
	return &Worker{geo: geo, audit: audit, bus: bus, log: log}
}

// Run starts all background loops in their own goroutines and returns
// immediately; the loops stop when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	go w.geoCompactionLoop(ctx)
	go w.alertDrainLoop(ctx)
	go w.driftScanLoop(ctx)
}

func (w *Worker) geoCompactionLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if err := w.geo.CompactOlderThan(now.Add(-geoRawRetention)); err != nil {
				w.log.Warn("geo compaction failed", zap.Error(err))
			}
			if err := w.geo.DeleteTilesOlderThan(now.Add(-geoTileRetention)); err != nil {
				w.log.Warn("geo tile retention sweep failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) driftScanLoop(ctx context.Context) {
	ticker := time.NewTicker(driftScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := time.Now().UTC().Add(-driftScanWindow)
			scores, err := w.audit.RecentScoresByPrincipal(since, driftScanPerPrincipal)
			if err != nil {
				w.log.Warn("drift scan query failed", zap.Error(err))
				continue
			}
			for _, report := range DriftScan(scores) {
				w.bus.Emit("risk_drift_detected", map[string]any{"principal_id": report.PrincipalID})
				w.log.Info("drift scan flagged worsening principal", zap.String("principal_id", report.PrincipalID))
			}
		}
	}
}

func (w *Worker) alertDrainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.bus.Drain():
			w.log.Info("alert dispatched", zap.String("type", ev.Type))
		}
	}
}

// DriftScan inspects the five most recent step-up log scores per
// principal and flags those whose risk trend is worsening: the average of
// the two most recent scores exceeds the average of the three before that,
// a deliberately naive heuristic matching the original's trend check.
func DriftScan(recentScoresByPrincipal map[string][]int) []DriftReport {
	var reports []DriftReport
	for principalID, scores := range recentScoresByPrincipal {
		if len(scores) < 5 {
			continue
		}
		recent := scores[len(scores)-5:]
		recentAvg := avg(recent[3:])
		olderAvg := avg(recent[:3])
		if recentAvg > olderAvg {
			reports = append(reports, DriftReport{PrincipalID: principalID, Worsening: true})
		}
	}
	return reports
}

func avg(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
