package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/apperr"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/locks"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/types"
)

type SubmitValidationInput struct {
	SkillID      uuid.UUID
	Level        int
	EvidenceType string
	Evidence     string
	Passed       bool
	Analysis     []byte // optional advisory mentor output, stored verbatim
}

type SubmitValidationResult struct {
	Validation *types.Validation
	Skill      *types.Skill
	FailCount  int
	Suggestion string
}

type PanicResult struct {
	NewLevel int
}

type CooldownStatus struct {
	CanAttempt  bool
	Reason      string
	CooldownEnd *time.Time
	RemainingMS int64
}

type ValidationService interface {
	History(ctx context.Context, skillID uuid.UUID) ([]*types.Validation, error)
	Submit(ctx context.Context, input SubmitValidationInput) (*SubmitValidationResult, error)
	Panic(ctx context.Context, validationID uuid.UUID) (*PanicResult, error)
	Cooldown(ctx context.Context, skillID uuid.UUID) (*CooldownStatus, error)
}

type validationService struct {
	db             *gorm.DB
	log            *logger.Logger
	skillRepo      repos.SkillRepo
	validationRepo repos.ValidationRepo
	locker         locks.SkillLocker
	clock          domain.Clock
}

func NewValidationService(db *gorm.DB, log *logger.Logger, skillRepo repos.SkillRepo, validationRepo repos.ValidationRepo, locker locks.SkillLocker, clock domain.Clock) ValidationService {
	return &validationService{
		db:             db,
		log:            log.With("service", "ValidationService"),
		skillRepo:      skillRepo,
		validationRepo: validationRepo,
		locker:         locker,
		clock:          clock,
	}
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func (vs *validationService) History(ctx context.Context, skillID uuid.UUID) ([]*types.Validation, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	skill, err := vs.skillRepo.GetForUser(ctx, nil, userID, skillID)
	if err != nil {
		return nil, err
	}
	if skill == nil {
		return nil, apperr.NotFound("skill")
	}
	return vs.validationRepo.ListForSkill(ctx, nil, skillID)
}

// Submit records one validation attempt and applies its level side effects
// atomically: the attempt row and the skill mutation commit together or not
// at all.
func (vs *validationService) Submit(ctx context.Context, input SubmitValidationInput) (*SubmitValidationResult, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if input.Level < domain.BaseLevel || input.Level > domain.MaxLevel {
		return nil, apperr.Policy(fmt.Sprintf("level must be between %d and %d", domain.BaseLevel, domain.MaxLevel))
	}

	unlock, err := vs.locker.Lock(ctx, input.SkillID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &SubmitValidationResult{}
	err = vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skill, err := vs.skillRepo.GetForUser(ctx, tx, userID, input.SkillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return apperr.NotFound("skill")
		}

		// No skipping levels: an attempt may target at most one level above
		// the current one, regardless of evidence.
		if input.Level > skill.CurrentLevel+1 {
			return apperr.Policy("cannot skip levels, complete the current level first")
		}

		now := vs.clock.Now()
		if input.Level == domain.ConsolidationLevel {
			if err := vs.checkConsolidationGate(ctx, tx, input.SkillID, now); err != nil {
				return err
			}
		}

		validation := &types.Validation{
			ID:           uuid.New(),
			SkillID:      input.SkillID,
			Level:        input.Level,
			EvidenceType: input.EvidenceType,
			Evidence:     input.Evidence,
			Passed:       input.Passed,
			AttemptedAt:  now,
		}
		if input.Passed {
			validation.PassedAt = &now
			if input.Level == domain.AutonomyLevel {
				// This is the record a future Consolidation attempt looks up.
				end := now.Add(domain.ConsolidationHours * time.Hour)
				validation.CooldownEnd = &end
			}
		}
		if len(input.Analysis) > 0 {
			validation.Analysis = datatypes.JSON(input.Analysis)
		}
		if err := vs.validationRepo.Create(ctx, tx, validation); err != nil {
			return fmt.Errorf("failed to create validation: %w", err)
		}
		result.Validation = validation

		entity := toDomain(skill)
		if input.Passed {
			next := entity.PassValidation(input.Level, vs.clock)
			if err := vs.skillRepo.UpdateFields(ctx, tx, skill.ID, map[string]interface{}{
				"current_level":  next.CurrentLevel,
				"fail_count":     0,
				"is_active":      next.IsActive,
				"last_practiced": next.LastPracticed,
			}); err != nil {
				return fmt.Errorf("failed to persist pass: %w", err)
			}
			result.FailCount = 0
		} else {
			next := entity.RecordFail()
			result.FailCount = next.FailCount

			if next.FailCount >= 3 {
				// Threshold reached: record the failure and surface the
				// reinforcement suggestion. No regression on this attempt,
				// and no node is created automatically.
				if err := vs.skillRepo.UpdateFields(ctx, tx, skill.ID, map[string]interface{}{
					"fail_count": next.FailCount,
				}); err != nil {
					return fmt.Errorf("failed to persist fail count: %w", err)
				}
				result.Suggestion = "Failed 3 times. Consider adding a reinforcement skill."
			} else if input.Level >= domain.AutonomyLevel && skill.CurrentLevel >= input.Level-1 {
				// Failing Autonomy or Consolidation kicks the skill back out
				// of the level it was trying to leave.
				regressed := next.Regress(input.Level - 1)
				if err := vs.skillRepo.UpdateFields(ctx, tx, skill.ID, map[string]interface{}{
					"current_level": regressed.CurrentLevel,
					"fail_count":    regressed.FailCount,
				}); err != nil {
					return fmt.Errorf("failed to persist regression: %w", err)
				}
			} else {
				if err := vs.skillRepo.UpdateFields(ctx, tx, skill.ID, map[string]interface{}{
					"fail_count": next.FailCount,
				}); err != nil {
					return fmt.Errorf("failed to persist fail count: %w", err)
				}
			}
		}

		result.Skill, err = vs.skillRepo.GetForUser(ctx, tx, userID, input.SkillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkConsolidationGate enforces the 48h wait behind every Consolidation
// attempt: a passing Autonomy validation must exist and its cooldown must
// have elapsed.
func (vs *validationService) checkConsolidationGate(ctx context.Context, tx *gorm.DB, skillID uuid.UUID, now time.Time) error {
	lastAutonomy, err := vs.validationRepo.FindLatestPassing(ctx, tx, skillID, domain.AutonomyLevel)
	if err != nil {
		return err
	}
	if lastAutonomy == nil || lastAutonomy.PassedAt == nil {
		return apperr.Policy("complete level 3 before attempting level 4")
	}
	cooldownEnd := lastAutonomy.PassedAt.Add(domain.ConsolidationHours * time.Hour)
	if now.Before(cooldownEnd) {
		return apperr.PolicyWithCooldown("cooldown active: wait 48 hours after passing level 3", cooldownEnd)
	}
	return nil
}

// Panic is the brutal-honesty escape hatch: the user admits a recorded pass
// was unearned. The skill drops two levels (floored at base), the fail count
// resets and the referenced validation is invalidated.
func (vs *validationService) Panic(ctx context.Context, validationID uuid.UUID) (*PanicResult, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}

	validation, err := vs.validationRepo.GetByID(ctx, nil, validationID)
	if err != nil {
		return nil, err
	}
	if validation == nil {
		return nil, apperr.NotFound("validation")
	}
	if validation.Skill == nil || validation.Skill.UserID != userID {
		return nil, apperr.ErrNotAuthorized
	}

	unlock, err := vs.locker.Lock(ctx, validation.SkillID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &PanicResult{}
	err = vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reload under the lock so a concurrent submission's level change is
		// seen before the drop is applied.
		skill, err := vs.skillRepo.GetForUser(ctx, tx, userID, validation.SkillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return apperr.NotFound("skill")
		}
		next := toDomain(skill).ApplyPanic()
		if err := vs.skillRepo.UpdateFields(ctx, tx, skill.ID, map[string]interface{}{
			"current_level": next.CurrentLevel,
			"fail_count":    0,
		}); err != nil {
			return fmt.Errorf("failed to persist panic regression: %w", err)
		}
		if err := vs.validationRepo.UpdateFields(ctx, tx, validationID, map[string]interface{}{
			"passed":    false,
			"passed_at": nil,
		}); err != nil {
			return fmt.Errorf("failed to invalidate validation: %w", err)
		}
		result.NewLevel = next.CurrentLevel
		return nil
	})
	if err != nil {
		return nil, err
	}
	vs.log.Info("Panic applied", "skill_id", validation.SkillID, "new_level", result.NewLevel)
	return result, nil
}

func (vs *validationService) Cooldown(ctx context.Context, skillID uuid.UUID) (*CooldownStatus, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	skill, err := vs.skillRepo.GetForUser(ctx, nil, userID, skillID)
	if err != nil {
		return nil, err
	}
	if skill == nil {
		return nil, apperr.NotFound("skill")
	}

	lastAutonomy, err := vs.validationRepo.FindLatestPassing(ctx, nil, skillID, domain.AutonomyLevel)
	if err != nil {
		return nil, err
	}
	if lastAutonomy == nil || lastAutonomy.PassedAt == nil {
		return &CooldownStatus{
			CanAttempt: false,
			Reason:     "level 3 not completed yet",
		}, nil
	}

	cooldownEnd := lastAutonomy.PassedAt.Add(domain.ConsolidationHours * time.Hour)
	now := vs.clock.Now()
	status := &CooldownStatus{
		CanAttempt:  !now.Before(cooldownEnd),
		CooldownEnd: &cooldownEnd,
	}
	if now.Before(cooldownEnd) {
		status.RemainingMS = cooldownEnd.Sub(now).Milliseconds()
	}
	return status, nil
}
