// Package network implements the known-network lifecycle: tracking
// distinct-day sightings of an IP prefix, promoting a prefix into a
// principal's trusted set once it has been seen on enough distinct days,
// and decaying promoted prefixes that have gone stale.
package network

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"riskguard/internal/policy"
)

// Counters is the persistence surface this package needs, satisfied by
// internal/store.NetworkStore.
type Counters interface {
	RecordSighting(principalID uuid.UUID, prefix string, day time.Time) error
	DistinctDayCount(principalID uuid.UUID, prefix string, window time.Duration, now time.Time) (int, error)
	MostRecentSighting(principalID uuid.UUID, prefix string) (time.Time, error)
}

const promotionWindow = 30 * 24 * time.Hour

// Tracker drives the known-network lifecycle against a counters backend
// and the resolved policy thresholds.
type Tracker struct {
	counters Counters
	policy   *policy.Store
}

func NewTracker(counters Counters, p *policy.Store) *Tracker {
	return &Tracker{counters: counters, policy: p}
}

// RecordLogin records today's sighting of ip for principalID, skipping
// private/loopback addresses which are never meaningful network identity.
func (t *Tracker) RecordLogin(ctx context.Context, principalID uuid.UUID, ip string) error {
	if policy.IsPrivate(ip) {
		return nil
	}
	prefix := policy.Prefix(ip)
	if prefix == "" {
		return nil
	}
	if err := t.counters.RecordSighting(principalID, prefix, time.Now()); err != nil {
		return fmt.Errorf("record network sighting: %w", err)
	}
	return nil
}

// ShouldPromote reports whether ip's prefix has been seen on enough
// distinct days in the trailing 30 days to be promoted.
func (t *Tracker) ShouldPromote(principalID uuid.UUID, ip string) (prefix string, promote bool, err error) {
	prefix = policy.Prefix(ip)
	if prefix == "" {
		return "", false, nil
	}
	count, err := t.counters.DistinctDayCount(principalID, prefix, promotionWindow, time.Now())
	if err != nil {
		return prefix, false, err
	}
	return prefix, count >= t.policy.PromotionThreshold, nil
}

// IsStale reports whether prefix's most recent sighting is older than
// the configured decay window (or was never seen).
func (t *Tracker) IsStale(principalID uuid.UUID, prefix string) (bool, error) {
	lastSeen, err := t.counters.MostRecentSighting(principalID, prefix)
	if err != nil {
		return false, err
	}
	if lastSeen.IsZero() {
		return true, nil
	}
	cutoff := time.Now().Add(-time.Duration(t.policy.DecayDays) * 24 * time.Hour)
	return lastSeen.Before(cutoff), nil
}

// DecaySweep returns the subset of `known` prefixes that should be demoted.
func (t *Tracker) DecaySweep(principalID uuid.UUID, known []string) ([]string, error) {
	var stale []string
	for _, prefix := range known {
		isStale, err := t.IsStale(principalID, prefix)
		if err != nil {
			return nil, err
		}
		if isStale {
			stale = append(stale, prefix)
		}
	}
	return stale, nil
}

// Contains reports whether ip falls within any of the known prefixes.
func Contains(known []string, ip string) bool {
	prefix := policy.Prefix(ip)
	for _, k := range known {
		if k == prefix {
			return true
		}
	}
	return false
}

// Remove returns `known` with `toRemove` prefixes excluded.
func Remove(known []string, toRemove []string) []string {
	if len(toRemove) == 0 {
		return known
	}
	remove := make(map[string]bool, len(toRemove))
	for _, p := range toRemove {
		remove[p] = true
	}
	out := make([]string, 0, len(known))
	for _, p := range known {
		if !remove[p] {
			out = append(out, p)
		}
	}
	return out
}

// Add appends prefix to known if not already present.
func Add(known []string, prefix string) []string {
	for _, p := range known {
		if p == prefix {
			return known
		}
	}
	return append(known, prefix)
}
