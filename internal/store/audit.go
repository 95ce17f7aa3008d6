package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"riskguard/internal/models"
)

// AuditStore appends step-up log rows.
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(principalID uuid.UUID, stage, method, outcome string, score int, level string, reasons []string, ip string) error {
	raw, _ := json.Marshal(reasons)
	row := models.StepUpLog{
		PrincipalID: principalID,
		Stage:       stage,
		Method:      method,
		Outcome:     outcome,
		RiskScore:   score,
		RiskLevel:   level,
		Reasons:     string(raw),
		IP:          ip,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (s *AuditStore) Recent(principalID uuid.UUID, limit int) ([]models.StepUpLog, error) {
	var rows []models.StepUpLog
	err := s.db.Where("principal_id = ?", principalID).Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load audit log: %w", err)
	}
	return rows, nil
}

// RecentScoresByPrincipal groups every step-up log row since `since` by
// principal, oldest first, trimming each principal's series to the most
// recent perPrincipalLimit entries -- the shape the drift scan consumes.
func (s *AuditStore) RecentScoresByPrincipal(since time.Time, perPrincipalLimit int) (map[string][]int, error) {
	var rows []models.StepUpLog
	err := s.db.Where("created_at >= ?", since).Order("principal_id, created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load recent audit logs: %w", err)
	}
	byPrincipal := make(map[string][]int)
	for _, row := range rows {
		id := row.PrincipalID.String()
		byPrincipal[id] = append(byPrincipal[id], row.RiskScore)
	}
	for id, scores := range byPrincipal {
		if len(scores) > perPrincipalLimit {
			byPrincipal[id] = scores[len(scores)-perPrincipalLimit:]
		}
	}
	return byPrincipal, nil
}
