package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"riskguard/internal/models"
)

// MagicLinkStore persists single-use magic-link tokens.
type MagicLinkStore struct{ db *gorm.DB }

func NewMagicLinkStore(db *gorm.DB) *MagicLinkStore { return &MagicLinkStore{db: db} }

func (s *MagicLinkStore) Create(principalID uuid.UUID, token string, ttl time.Duration) error {
	row := models.MagicLink{
		PrincipalID: principalID,
		Token:       token,
		ExpiresAt:   time.Now().Add(ttl),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create magic link: %w", err)
	}
	return nil
}

// ErrMagicLinkNotFound, ErrMagicLinkUsed, ErrMagicLinkExpired distinguish
// the three rejection reasons the token-claims contract requires.
var (
	ErrMagicLinkNotFound = errors.New("magic_link_not_found")
	ErrMagicLinkUsed     = errors.New("magic_link_already_used")
	ErrMagicLinkExpired  = errors.New("magic_link_expired")
)

// Consume looks up a magic link token and marks it used, returning a
// specific sentinel error for each rejection reason.
func (s *MagicLinkStore) Consume(token string) (*models.MagicLink, error) {
	var row models.MagicLink
	err := s.db.Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMagicLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup magic link: %w", err)
	}
	if row.Used {
		return nil, ErrMagicLinkUsed
	}
	if row.IsExpired() {
		return nil, ErrMagicLinkExpired
	}
	row.Used = true
	if err := s.db.Save(&row).Error; err != nil {
		return nil, fmt.Errorf("mark magic link used: %w", err)
	}
	return &row, nil
}

// TrustedDeviceStore persists device/IP pairs a principal has confirmed.
type TrustedDeviceStore struct{ db *gorm.DB }

func NewTrustedDeviceStore(db *gorm.DB) *TrustedDeviceStore { return &TrustedDeviceStore{db: db} }

func (s *TrustedDeviceStore) IsTrusted(principalID uuid.UUID, deviceHash, ip string) (bool, error) {
	var count int64
	err := s.db.Model(&models.TrustedDevice{}).
		Where("principal_id = ? AND device_hash = ? AND ip = ?", principalID, deviceHash, ip).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup trusted device: %w", err)
	}
	return count > 0, nil
}

func (s *TrustedDeviceStore) Trust(principalID uuid.UUID, deviceHash, ip string) error {
	row := models.TrustedDevice{PrincipalID: principalID, DeviceHash: deviceHash, IP: ip}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("trust device: %w", err)
	}
	return nil
}

// ChallengeAnswerStore persists the context/ambient step-up question and
// a bcrypt hash of its expected answer.
type ChallengeAnswerStore struct{ db *gorm.DB }

func NewChallengeAnswerStore(db *gorm.DB) *ChallengeAnswerStore { return &ChallengeAnswerStore{db: db} }

func (s *ChallengeAnswerStore) Set(principalID uuid.UUID, question, answer string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(normalizeAnswer(answer)), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash challenge answer: %w", err)
	}
	row := models.ChallengeAnswer{PrincipalID: principalID, Question: question, AnswerHash: string(hash)}

	var existing models.ChallengeAnswer
	err = s.db.Where("principal_id = ?", principalID).First(&existing).Error
	if err == nil {
		existing.Question = question
		existing.AnswerHash = string(hash)
		return s.db.Save(&existing).Error
	}
	return s.db.Create(&row).Error
}

func (s *ChallengeAnswerStore) Get(principalID uuid.UUID) (*models.ChallengeAnswer, error) {
	var row models.ChallengeAnswer
	err := s.db.Where("principal_id = ?", principalID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge answer: %w", err)
	}
	return &row, nil
}

func (s *ChallengeAnswerStore) Verify(principalID uuid.UUID, answer string) (bool, error) {
	row, err := s.Get(principalID)
	if err != nil || row == nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(row.AnswerHash), []byte(normalizeAnswer(answer)))
	return err == nil, nil
}

func normalizeAnswer(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}
