package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"riskguard/internal/models"
)

// NetworkStore persists the distinct-day counters used to promote and
// decay known networks.
type NetworkStore struct {
	db *gorm.DB
}

func NewNetworkStore(db *gorm.DB) *NetworkStore {
	return &NetworkStore{db: db}
}

// RecordSighting upserts today's (principal, prefix, day) counter row.
func (s *NetworkStore) RecordSighting(principalID uuid.UUID, prefix string, day time.Time) error {
	dayStr := day.UTC().Format("2006-01-02")
	var existing models.DistinctDayCounter
	err := s.db.Where("principal_id = ? AND prefix = ? AND day = ?", principalID, prefix, dayStr).
		First(&existing).Error
	if err == nil {
		existing.LastSeen = day.UTC()
		return s.db.Save(&existing).Error
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lookup counter: %w", err)
	}
	row := models.DistinctDayCounter{
		PrincipalID: principalID,
		Prefix:      prefix,
		Day:         dayStr,
		LastSeen:    day.UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create counter: %w", err)
	}
	return nil
}

// DistinctDayCount returns the number of distinct days `prefix` was seen
// for `principalID` within the trailing `window`.
func (s *NetworkStore) DistinctDayCount(principalID uuid.UUID, prefix string, window time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-window).UTC().Format("2006-01-02")
	var count int64
	err := s.db.Model(&models.DistinctDayCounter{}).
		Where("principal_id = ? AND prefix = ? AND day >= ?", principalID, prefix, cutoff).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count distinct days: %w", err)
	}
	return int(count), nil
}

// MostRecentSighting returns the latest LastSeen for a prefix, or zero time
// if never seen.
func (s *NetworkStore) MostRecentSighting(principalID uuid.UUID, prefix string) (time.Time, error) {
	var row models.DistinctDayCounter
	err := s.db.Where("principal_id = ? AND prefix = ?", principalID, prefix).
		Order("last_seen DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup last seen: %w", err)
	}
	return row.LastSeen, nil
}
