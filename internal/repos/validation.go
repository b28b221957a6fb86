package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/types"
)

type ValidationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, validation *types.Validation) error
	GetByID(ctx context.Context, tx *gorm.DB, validationID uuid.UUID) (*types.Validation, error)
	ListForSkill(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) ([]*types.Validation, error)
	FindLatestPassing(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, level int) (*types.Validation, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, validationID uuid.UUID, fields map[string]interface{}) error
	ListCooldownElapsed(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Validation, error)
}

type validationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationRepo(db *gorm.DB, baseLog *logger.Logger) ValidationRepo {
	return &validationRepo{db: db, log: baseLog.With("repo", "ValidationRepo")}
}

func (r *validationRepo) Create(ctx context.Context, tx *gorm.DB, validation *types.Validation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(validation).Error
}

func (r *validationRepo) GetByID(ctx context.Context, tx *gorm.DB, validationID uuid.UUID) (*types.Validation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if validationID == uuid.Nil {
		return nil, nil
	}
	var row types.Validation
	err := transaction.WithContext(ctx).
		Preload("Skill").
		Where("id = ?", validationID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *validationRepo) ListForSkill(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) ([]*types.Validation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Validation
	err := transaction.WithContext(ctx).
		Where("skill_id = ?", skillID).
		Order("attempted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *validationRepo) FindLatestPassing(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, level int) (*types.Validation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Validation
	err := transaction.WithContext(ctx).
		Where("skill_id = ? AND level = ? AND passed = ?", skillID, level, true).
		Order("passed_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *validationRepo) UpdateFields(ctx context.Context, tx *gorm.DB, validationID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Validation{}).
		Where("id = ?", validationID).
		Updates(fields).Error
}

// ListCooldownElapsed returns passing Autonomy validations whose pass is
// older than the cutoff, not yet notified, on skills still sitting at
// Autonomy. This is the notification sweep's work queue.
func (r *validationRepo) ListCooldownElapsed(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Validation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Validation
	err := transaction.WithContext(ctx).
		Preload("Skill").
		Preload("Skill.User").
		Joins("JOIN skill ON skill.id = validation.skill_id").
		Where("validation.level = ? AND validation.passed = ? AND validation.notified = ?", domain.AutonomyLevel, true, false).
		Where("validation.passed_at <= ?", cutoff).
		Where("skill.current_level = ?", domain.AutonomyLevel).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
