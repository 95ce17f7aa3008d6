// Package tokens mints and verifies the scoped JWTs used throughout the
// step-up state machine, following the teacher's jwt.MapClaims + HS256
// idiom from its access-token issuance handler.
package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeOnboarding = "onboarding"
	ScopeAccess     = "access"
	ScopeRefresh    = "refresh"
	ScopeMagic      = "magic"
)

// Claims is the decoded, typed form of a verified token.
type Claims struct {
	Subject           string
	Scope             string
	BehaviorSignature string
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

// Minter mints and verifies HS256 JWTs against a single shared secret.
type Minter struct {
	secret []byte
}

func NewMinter(secret string) *Minter {
	return &Minter{secret: []byte(secret)}
}

// Mint issues a token with the given scope, subject, optional behavior
// signature binding, and TTL.
func (m *Minter) Mint(sub, scope, behaviorSignature string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"typ": scope,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if behaviorSignature != "" {
		claims["behavior_signature"] = behaviorSignature
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates token, additionally requiring scope to match
// wantScope when wantScope is non-empty.
func (m *Minter) Verify(tokenStr, wantScope string) (Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	scope, _ := mc["typ"].(string)
	if wantScope != "" && scope != wantScope {
		return Claims{}, fmt.Errorf("unexpected token scope %q, want %q", scope, wantScope)
	}
	sub, _ := mc["sub"].(string)
	sig, _ := mc["behavior_signature"].(string)

	var iat, exp time.Time
	if v, ok := mc["iat"].(float64); ok {
		iat = time.Unix(int64(v), 0)
	}
	if v, ok := mc["exp"].(float64); ok {
		exp = time.Unix(int64(v), 0)
	}
	return Claims{
		Subject:           sub,
		Scope:             scope,
		BehaviorSignature: sig,
		IssuedAt:          iat,
		ExpiresAt:         exp,
	}, nil
}
