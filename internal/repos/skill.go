package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/types"
)

type SkillRepo interface {
	Create(ctx context.Context, tx *gorm.DB, skill *types.Skill, requirementIDs []uuid.UUID) error
	GetForUser(ctx context.Context, tx *gorm.DB, userID, skillID uuid.UUID) (*types.Skill, error)
	ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Skill, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, fields map[string]interface{}) error
	ReplaceRequirements(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, requirementIDs []uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error
	CountActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error)
	UpdatePosition(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, x, y float64) error
}

type skillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillRepo(db *gorm.DB, baseLog *logger.Logger) SkillRepo {
	return &skillRepo{db: db, log: baseLog.With("repo", "SkillRepo")}
}

func (r *skillRepo) Create(ctx context.Context, tx *gorm.DB, skill *types.Skill, requirementIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(skill).Error; err != nil {
		return err
	}
	return r.insertRequirements(ctx, transaction, skill.ID, requirementIDs)
}

func (r *skillRepo) GetForUser(ctx context.Context, tx *gorm.DB, userID, skillID uuid.UUID) (*types.Skill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || skillID == uuid.Nil {
		return nil, nil
	}
	var row types.Skill
	err := transaction.WithContext(ctx).
		Preload("Requirements").
		Where("id = ? AND user_id = ?", skillID, userID).
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

func (r *skillRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Skill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Skill
	if userID == uuid.Nil {
		return rows, nil
	}
	err := transaction.WithContext(ctx).
		Preload("Requirements").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *skillRepo) UpdateFields(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Skill{}).
		Where("id = ?", skillID).
		Updates(fields).Error
}

func (r *skillRepo) ReplaceRequirements(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, requirementIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Where("skill_id = ?", skillID).
		Delete(&types.SkillRequirement{}).Error; err != nil {
		return err
	}
	return r.insertRequirements(ctx, transaction, skillID, requirementIDs)
}

func (r *skillRepo) insertRequirements(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, requirementIDs []uuid.UUID) error {
	if len(requirementIDs) == 0 {
		return nil
	}
	// Duplicate entries are harmless no-ops semantically; dedupe here so the
	// unique index never trips.
	seen := make(map[uuid.UUID]bool, len(requirementIDs))
	edges := make([]types.SkillRequirement, 0, len(requirementIDs))
	for _, reqID := range requirementIDs {
		if seen[reqID] {
			continue
		}
		seen[reqID] = true
		edges = append(edges, types.SkillRequirement{
			ID:            uuid.New(),
			SkillID:       skillID,
			RequirementID: reqID,
		})
	}
	return tx.WithContext(ctx).Create(&edges).Error
}

func (r *skillRepo) Delete(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// Cascade by hand: edges pointing at this skill, its own edges, its
	// validation history, then the row itself.
	if err := transaction.WithContext(ctx).
		Where("skill_id = ? OR requirement_id = ?", skillID, skillID).
		Delete(&types.SkillRequirement{}).Error; err != nil {
		return err
	}
	if err := transaction.WithContext(ctx).
		Where("skill_id = ?", skillID).
		Delete(&types.Validation{}).Error; err != nil {
		return err
	}
	return transaction.WithContext(ctx).
		Where("id = ?", skillID).
		Delete(&types.Skill{}).Error
}

func (r *skillRepo) CountActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Skill{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *skillRepo) UpdatePosition(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, x, y float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Skill{}).
		Where("id = ?", skillID).
		Updates(map[string]interface{}{"x": x, "y": y}).Error
}
