package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionState is the keyed, TTL'd hash the session guardian reads and
// writes for one live session.
type SessionState struct {
	RiskLevel string
	RiskScore int
	Reason    string
	UpdatedAt time.Time
}

const sessionTTL = 3600 * time.Second

// SessionStore is the Redis-backed hot path for in-session risk state,
// grounded on the original session guardian's `session:{id}` Redis hash
// with a 3600s expire.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(sessionID string) string { return "session:" + sessionID }

// Put writes the session's current risk state and refreshes its TTL.
func (s *SessionStore) Put(ctx context.Context, sessionID string, state SessionState) error {
	key := sessionKey(sessionID)
	fields := map[string]any{
		"risk_level": state.RiskLevel,
		"risk_score": strconv.Itoa(state.RiskScore),
		"reason":     state.Reason,
		"updated_at": state.UpdatedAt.UTC().Format(time.RFC3339),
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Get reads a session's current risk state. ok is false if the key has
// expired or never existed.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (SessionState, bool, error) {
	res, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return SessionState{}, false, fmt.Errorf("read session state: %w", err)
	}
	if len(res) == 0 {
		return SessionState{}, false, nil
	}
	score, _ := strconv.Atoi(res["risk_score"])
	updatedAt, _ := time.Parse(time.RFC3339, res["updated_at"])
	return SessionState{
		RiskLevel: res["risk_level"],
		RiskScore: score,
		Reason:    res["reason"],
		UpdatedAt: updatedAt,
	}, true, nil
}
