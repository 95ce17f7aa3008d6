package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"riskguard/internal/models"
	"riskguard/internal/riskengine"
)

// ProfileStore persists per-principal behavioural/device/geo baselines.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) ByPrincipal(id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.db.Where("principal_id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileStore) Save(p *models.Profile) error {
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) Create(p *models.Profile) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// KnownNetworks returns the profile's promoted CIDR prefixes.
func KnownNetworks(p *models.Profile) []string {
	if p == nil || p.KnownNetworksJSON == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(p.KnownNetworksJSON), &out)
	return out
}

// SetKnownNetworks serialises the promoted CIDR prefix list back onto the
// model.
func SetKnownNetworks(p *models.Profile, prefixes []string) {
	raw, _ := json.Marshal(prefixes)
	p.KnownNetworksJSON = string(raw)
}

// ToBaseline converts a persisted profile into the riskengine's comparison
// shape. A nil profile yields Baseline{HasProfile: false}.
func ToBaseline(p *models.Profile) riskengine.Baseline {
	if p == nil {
		return riskengine.Baseline{}
	}
	return riskengine.Baseline{
		HasProfile: true,
		Device: riskengine.Device{
			BrowserBrand: p.BrowserBrand,
			OSFamily:     p.OSFamily,
			ScreenClass:  p.ScreenClass,
			ScreenRaw:    p.ScreenWH,
			Timezone:     p.Timezone,
		},
		Geo: riskengine.Geo{
			Lat: p.GeoLat, Lon: p.GeoLon, Accuracy: p.GeoAcc,
			HasFix: p.GeoLat != 0 || p.GeoLon != 0,
		},
		IPCity:    p.IPCity,
		IPRegion:  p.IPRegion,
		IPCountry: p.IPCountry,

		TypingWPM:    toZ(p.TypingWPM),
		TypingErr:    toZ(p.TypingErr),
		TypingTiming: toZ(p.TypingTiming),
		MousePath:    toZ(p.MousePathLen),
		MouseClicks:  toZ(p.MouseClicks),

		KnownNetworkPrefixes: KnownNetworks(p),
	}
}

func toZ(b models.TypingBaselineJSON) riskengine.ZBaseline {
	return riskengine.ZBaseline{Mean: b.Mean, Var: b.Var, HasData: b.HasData}
}

func fromZ(z riskengine.ZBaseline) models.TypingBaselineJSON {
	return models.TypingBaselineJSON{Mean: z.Mean, Var: z.Var, HasData: z.HasData}
}

// ApplyBaselineUpdate writes EWMA-updated dimensions back onto the model.
func ApplyBaselineUpdate(p *models.Profile, wpm, errRate, timing, pathLen, clicks riskengine.ZBaseline) {
	p.TypingWPM = fromZ(wpm)
	p.TypingErr = fromZ(errRate)
	p.TypingTiming = fromZ(timing)
	p.MousePathLen = fromZ(pathLen)
	p.MouseClicks = fromZ(clicks)
}
