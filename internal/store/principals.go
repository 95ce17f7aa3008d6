package store

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"riskguard/internal/models"
)

// PrincipalStore persists registered principals.
type PrincipalStore struct {
	db *gorm.DB
}

func NewPrincipalStore(db *gorm.DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

// Create inserts a new principal, wrapping any database error. Email/phone
// collisions are detected beforehand by ExistsByEmailOrPhone.
func (s *PrincipalStore) Create(p *models.Principal) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func (s *PrincipalStore) ByEmail(email string) (*models.Principal, error) {
	var p models.Principal
	if err := s.db.Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PrincipalStore) ByPhone(phone string) (*models.Principal, error) {
	var p models.Principal
	if err := s.db.Where("phone = ?", phone).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PrincipalStore) ByID(id uuid.UUID) (*models.Principal, error) {
	var p models.Principal
	if err := s.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PrincipalStore) Save(p *models.Principal) error {
	return s.db.Save(p).Error
}

// ExistsByEmailOrPhone reports conflicting registration identifiers.
func (s *PrincipalStore) ExistsByEmailOrPhone(email, phone string) (emailTaken, phoneTaken bool) {
	var count int64
	s.db.Model(&models.Principal{}).Where("email = ?", email).Count(&count)
	emailTaken = count > 0
	if phone != "" {
		s.db.Model(&models.Principal{}).Where("phone = ?", phone).Count(&count)
		phoneTaken = count > 0
	}
	return
}
