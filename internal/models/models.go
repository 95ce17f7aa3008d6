// Package models holds the GORM-persisted domain types shared across the
// risk engine, baseline learner, step-up orchestrator and session guardian.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal is a registered user of the protected application.
type Principal struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email             string    `gorm:"uniqueIndex;not null"`
	Phone             string    `gorm:"uniqueIndex"`
	PasswordHash      string    `gorm:"not null"`
	EmailVerified     bool      `gorm:"default:false"`
	OnboardingComplete bool     `gorm:"default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Principal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TypingBaseline holds EWMA mean/variance for one typing-dynamics dimension.
type TypingBaseline struct {
	Mean float64 `json:"mean"`
	Var  float64 `json:"var"`
}

// PointerBaseline holds EWMA mean/variance for one pointer-dynamics dimension.
type PointerBaseline struct {
	Mean float64 `json:"mean"`
	Var  float64 `json:"var"`
}

// BaselineSnapshot is one versioned entry in a profile's bounded history.
type BaselineSnapshot struct {
	Version   int       `json:"version"`
	CapturedAt time.Time `json:"captured_at"`
	Device    string    `json:"device"`
	GeoLat    float64   `json:"geo_lat"`
	GeoLon    float64   `json:"geo_lon"`
}

// Profile is the behavioural/device/geo baseline the risk engine scores
// against. One profile per principal.
type Profile struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	BrowserBrand   string
	BrowserVersion string
	OSFamily       string
	ScreenClass    string
	ScreenWH       string
	Timezone       string

	GeoLat     float64
	GeoLon     float64
	GeoAcc     float64
	IPCity     string
	IPRegion   string
	IPCountry  string

	TypingWPM     TypingBaselineJSON `gorm:"embedded;embeddedPrefix:typing_wpm_"`
	TypingErr     TypingBaselineJSON `gorm:"embedded;embeddedPrefix:typing_err_"`
	TypingTiming  TypingBaselineJSON `gorm:"embedded;embeddedPrefix:typing_timing_"`
	MousePathLen  TypingBaselineJSON `gorm:"embedded;embeddedPrefix:mouse_path_"`
	MouseClicks   TypingBaselineJSON `gorm:"embedded;embeddedPrefix:mouse_clicks_"`

	KnownNetworksJSON string `gorm:"type:text"` // JSON array of CIDR prefixes
	BehaviorSignature string

	LowRiskStreak  int `gorm:"default:0"`
	BaselineStable bool `gorm:"default:false"`
	BaselineVersion int `gorm:"default:0"`

	HistoryJSON string `gorm:"type:text"` // JSON array of BaselineSnapshot; the learn path in internal/stepup does not write it

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TypingBaselineJSON is the GORM-embeddable form of an EWMA mean/var pair.
// Mean/Var use a pointer-free float64 with HasData to distinguish "never
// observed" (variance seeded at first write per the EWMA update rule) from
// a genuine zero.
type TypingBaselineJSON struct {
	Mean    float64
	Var     float64
	HasData bool
}

func (p *Principal) TableName() string { return "principals" }
func (p *Profile) TableName() string   { return "profiles" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DistinctDayCounter records one (principal, prefix, day) observation used
// by the known-network tracker to count distinct days seen.
type DistinctDayCounter struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index:idx_counter_lookup"`
	Prefix      string    `gorm:"index:idx_counter_lookup"`
	Day         string    `gorm:"index:idx_counter_lookup"` // YYYY-MM-DD
	LastSeen    time.Time
}

func (DistinctDayCounter) TableName() string { return "distinct_day_counters" }

func (c *DistinctDayCounter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ChallengeAnswer is a per-principal question/answer pair, set during
// onboarding, used by the context/ambient step-up methods.
type ChallengeAnswer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID  uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Question     string
	AnswerHash   string
	CreatedAt    time.Time
}

func (ChallengeAnswer) TableName() string { return "challenge_answers" }

func (c *ChallengeAnswer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// GeoEvent is a raw geolocation observation, retained for 30 days before
// being compacted into GeoTile and deleted.
type GeoEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index"`
	Lat         float64
	Lon         float64
	Accuracy    float64
	ObservedAt  time.Time `gorm:"index"`
}

func (GeoEvent) TableName() string { return "geo_events" }

func (g *GeoEvent) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GeoTile is a compacted aggregate of GeoEvent rows, retained 180 days.
type GeoTile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index"`
	TileLat     float64
	TileLon     float64
	Count       int
	AvgAccuracy float64
	CreatedAt   time.Time
}

func (GeoTile) TableName() string { return "geo_tiles" }

func (g *GeoTile) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// StepUpLog is an append-only audit trail of authentication/step-up outcomes.
type StepUpLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index"`
	Stage       string    // register, verify, onboarding, login, step_up
	Method      string    // behavioral, trusted_device, magic_link, webauthn, context, ambient
	Outcome     string    // allow, challenge, block
	RiskScore   int
	RiskLevel   string
	Reasons     string // JSON array
	IP          string
	CreatedAt   time.Time
}

func (StepUpLog) TableName() string { return "step_up_logs" }

func (s *StepUpLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// MagicLink is a single-use, time-boxed login token sent out-of-band.
type MagicLink struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index"`
	Token       string    `gorm:"uniqueIndex"`
	Used        bool      `gorm:"default:false"`
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (MagicLink) TableName() string { return "magic_links" }

func (m *MagicLink) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *MagicLink) IsExpired() bool { return time.Now().After(m.ExpiresAt) }

// TrustedDevice lets a principal skip behavioral step-up on a recognised
// device/IP pairing.
type TrustedDevice struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PrincipalID uuid.UUID `gorm:"type:uuid;index"`
	DeviceHash  string    `gorm:"index"`
	IP          string
	CreatedAt   time.Time
}

func (TrustedDevice) TableName() string { return "trusted_devices" }

func (t *TrustedDevice) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
