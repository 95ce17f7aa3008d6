package store

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"riskguard/internal/models"
)

// GeoStore persists raw geo observations and their compacted tile
// aggregates, matching the original's 30-day raw / 180-day tile retention.
type GeoStore struct{ db *gorm.DB }

func NewGeoStore(db *gorm.DB) *GeoStore { return &GeoStore{db: db} }

const tileDegrees = 0.1 // ~11km at the equator

func tileCoord(v float64) float64 {
	return math.Round(v/tileDegrees) * tileDegrees
}

func (s *GeoStore) RecordEvent(principalID uuid.UUID, lat, lon, accuracy float64, at time.Time) error {
	row := models.GeoEvent{PrincipalID: principalID, Lat: lat, Lon: lon, Accuracy: accuracy, ObservedAt: at}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("record geo event: %w", err)
	}
	return nil
}

// CompactOlderThan aggregates raw events older than cutoff into tiles and
// deletes the source rows, implementing the periodic aggregator job.
func (s *GeoStore) CompactOlderThan(cutoff time.Time) error {
	var events []models.GeoEvent
	if err := s.db.Where("observed_at < ?", cutoff).Find(&events).Error; err != nil {
		return fmt.Errorf("load geo events for compaction: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	type key struct {
		principal uuid.UUID
		lat, lon  float64
	}
	agg := map[key]*models.GeoTile{}
	for _, e := range events {
		k := key{e.PrincipalID, tileCoord(e.Lat), tileCoord(e.Lon)}
		t, ok := agg[k]
		if !ok {
			t = &models.GeoTile{PrincipalID: e.PrincipalID, TileLat: k.lat, TileLon: k.lon, CreatedAt: time.Now().UTC()}
			agg[k] = t
		}
		t.AvgAccuracy = (t.AvgAccuracy*float64(t.Count) + e.Accuracy) / float64(t.Count+1)
		t.Count++
	}
	for _, t := range agg {
		if err := s.db.Create(t).Error; err != nil {
			return fmt.Errorf("write geo tile: %w", err)
		}
	}
	if err := s.db.Where("observed_at < ?", cutoff).Delete(&models.GeoEvent{}).Error; err != nil {
		return fmt.Errorf("delete compacted geo events: %w", err)
	}
	return nil
}

// DeleteTilesOlderThan enforces the 180-day tile retention window.
func (s *GeoStore) DeleteTilesOlderThan(cutoff time.Time) error {
	if err := s.db.Where("created_at < ?", cutoff).Delete(&models.GeoTile{}).Error; err != nil {
		return fmt.Errorf("delete stale geo tiles: %w", err)
	}
	return nil
}
