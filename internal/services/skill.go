package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/apperr"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/graph"
	"github.com/smaehq/smae-backend/internal/layout"
	"github.com/smaehq/smae-backend/internal/locks"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/requestdata"
	"github.com/smaehq/smae-backend/internal/types"
)

type CreateSkillInput struct {
	Name            string
	Category        string
	Requirements    []uuid.UUID
	IsHito          bool
	IsReinforcement bool
	ParentSkillID   *uuid.UUID
}

type UpdateSkillInput struct {
	Name         *string
	Category     *string
	IsHito       *bool
	Requirements *[]uuid.UUID // replacement set; nil leaves edges untouched
}

type SkillService interface {
	List(ctx context.Context) ([]*types.Skill, error)
	Get(ctx context.Context, skillID uuid.UUID) (*types.Skill, error)
	Create(ctx context.Context, input CreateSkillInput) (*types.Skill, error)
	Update(ctx context.Context, skillID uuid.UUID, input UpdateSkillInput) (*types.Skill, error)
	Delete(ctx context.Context, skillID uuid.UUID) error
	LevelUp(ctx context.Context, skillID uuid.UUID) (*types.Skill, error)
	FastForward(ctx context.Context, skillID uuid.UUID, hours int) (*types.Skill, error)
}

type skillService struct {
	db        *gorm.DB
	log       *logger.Logger
	skillRepo repos.SkillRepo
	locker    locks.SkillLocker
	clock     domain.Clock
}

func NewSkillService(db *gorm.DB, log *logger.Logger, skillRepo repos.SkillRepo, locker locks.SkillLocker, clock domain.Clock) SkillService {
	return &skillService{
		db:        db,
		log:       log.With("service", "SkillService"),
		skillRepo: skillRepo,
		locker:    locker,
		clock:     clock,
	}
}

func toDomain(s *types.Skill) domain.Skill {
	return domain.Skill{
		ID:              s.ID,
		Name:            s.Name,
		Category:        s.Category,
		CurrentLevel:    s.CurrentLevel,
		IsActive:        s.IsActive,
		FailCount:       s.FailCount,
		LastPracticed:   s.LastPracticed,
		IsHito:          s.IsHito,
		IsReinforcement: s.IsReinforcement,
		ParentSkillID:   s.ParentSkillID,
		Requirements:    s.RequirementIDs(),
	}
}

func ownerID(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apperr.ErrNotAuthorized
	}
	return rd.UserID, nil
}

func (ss *skillService) List(ctx context.Context) ([]*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return ss.skillRepo.ListForUser(ctx, nil, userID)
}

func (ss *skillService) Get(ctx context.Context, skillID uuid.UUID) (*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	skill, err := ss.skillRepo.GetForUser(ctx, nil, userID, skillID)
	if err != nil {
		return nil, err
	}
	if skill == nil {
		return nil, apperr.NotFound("skill")
	}
	return skill, nil
}

func (ss *skillService) Create(ctx context.Context, input CreateSkillInput) (*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, apperr.Policy("skill name is required")
	}

	skillID := uuid.New()
	var created *types.Skill
	err = ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := ss.skillRepo.ListForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := ss.checkRequirements(all, skillID, input.Requirements); err != nil {
			return err
		}
		skill := &types.Skill{
			ID:              skillID,
			UserID:          userID,
			Name:            input.Name,
			Category:        input.Category,
			CurrentLevel:    domain.BaseLevel,
			IsHito:          input.IsHito,
			IsReinforcement: input.IsReinforcement,
			ParentSkillID:   input.ParentSkillID,
		}
		if err := ss.skillRepo.Create(ctx, tx, skill, input.Requirements); err != nil {
			return fmt.Errorf("failed to create skill: %w", err)
		}
		if err := ss.recomputeLayout(ctx, tx, userID); err != nil {
			return err
		}
		created, err = ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (ss *skillService) Update(ctx context.Context, skillID uuid.UUID, input UpdateSkillInput) (*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}

	var updated *types.Skill
	err = ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skill, err := ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return apperr.NotFound("skill")
		}

		fields := map[string]interface{}{}
		if input.Name != nil {
			fields["name"] = *input.Name
		}
		if input.Category != nil {
			fields["category"] = *input.Category
		}
		if input.IsHito != nil {
			fields["is_hito"] = *input.IsHito
		}
		if err := ss.skillRepo.UpdateFields(ctx, tx, skillID, fields); err != nil {
			return fmt.Errorf("failed to update skill: %w", err)
		}

		if input.Requirements != nil {
			// The cycle check runs against the full snapshot inside this
			// transaction, so a concurrent edit cannot invalidate it silently.
			all, err := ss.skillRepo.ListForUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if err := ss.checkRequirements(all, skillID, *input.Requirements); err != nil {
				return err
			}
			if err := ss.skillRepo.ReplaceRequirements(ctx, tx, skillID, *input.Requirements); err != nil {
				return fmt.Errorf("failed to replace requirements: %w", err)
			}
		}

		if err := ss.recomputeLayout(ctx, tx, userID); err != nil {
			return err
		}
		updated, err = ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkRequirements rejects unknown targets, self-references and any edge
// set that would introduce a cycle. It must pass before anything persists.
func (ss *skillService) checkRequirements(all []*types.Skill, skillID uuid.UUID, requirementIDs []uuid.UUID) error {
	if len(requirementIDs) == 0 {
		return nil
	}
	known := make(map[uuid.UUID]bool, len(all))
	adj := make(graph.Adjacency, len(all))
	for _, s := range all {
		known[s.ID] = true
		adj[s.ID] = s.RequirementIDs()
	}
	for _, reqID := range requirementIDs {
		if reqID == skillID {
			return apperr.Policy("a skill cannot require itself")
		}
		if !known[reqID] {
			return apperr.NotFound("requirement skill")
		}
	}
	if graph.HasCycle(adj, skillID, requirementIDs) {
		return apperr.Policy("requirements would create a dependency cycle")
	}
	return nil
}

func (ss *skillService) Delete(ctx context.Context, skillID uuid.UUID) error {
	userID, err := ownerID(ctx)
	if err != nil {
		return err
	}
	return ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skill, err := ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return apperr.NotFound("skill")
		}
		if err := ss.skillRepo.Delete(ctx, tx, skillID); err != nil {
			return fmt.Errorf("failed to delete skill: %w", err)
		}
		return ss.recomputeLayout(ctx, tx, userID)
	})
}

func (ss *skillService) LevelUp(ctx context.Context, skillID uuid.UUID) (*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}

	unlock, err := ss.locker.Lock(ctx, skillID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var leveled *types.Skill
	err = ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := ss.skillRepo.ListForUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]domain.Skill, len(all))
		currentWIP := 0
		var target *types.Skill
		for _, s := range all {
			byID[s.ID] = toDomain(s)
			if s.IsActive {
				currentWIP++
			}
			if s.ID == skillID {
				target = s
			}
		}
		if target == nil {
			return apperr.NotFound("skill")
		}

		entity := toDomain(target)
		lookup := func(id uuid.UUID) *domain.Skill {
			if s, ok := byID[id]; ok {
				return &s
			}
			return nil
		}
		decision := entity.CanLevelUp(lookup, currentWIP, ss.clock)
		if !decision.Allowed {
			if decision.CooldownHours > 0 {
				end := ss.clock.Now().Add(hoursToDuration(decision.CooldownHours))
				return apperr.PolicyWithCooldown(decision.Reason, end)
			}
			return apperr.Policy(decision.Reason)
		}

		next := entity.LevelUp(ss.clock)
		if err := ss.skillRepo.UpdateFields(ctx, tx, skillID, map[string]interface{}{
			"current_level":  next.CurrentLevel,
			"is_active":      next.IsActive,
			"last_practiced": next.LastPracticed,
		}); err != nil {
			return fmt.Errorf("failed to persist level up: %w", err)
		}
		leveled, err = ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	ss.log.Info("Skill leveled up", "skill_id", skillID, "level", leveled.CurrentLevel)
	return leveled, nil
}

// FastForward shifts a skill's practice timestamp into the past. Debug-only
// endpoint for exercising cooldown behavior.
func (ss *skillService) FastForward(ctx context.Context, skillID uuid.UUID, hours int) (*types.Skill, error) {
	userID, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if hours <= 0 {
		return nil, apperr.Policy("hours must be positive")
	}

	var updated *types.Skill
	err = ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skill, err := ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return apperr.NotFound("skill")
		}
		next := toDomain(skill).FastForward(hours)
		if err := ss.skillRepo.UpdateFields(ctx, tx, skillID, map[string]interface{}{
			"last_practiced": next.LastPracticed,
		}); err != nil {
			return err
		}
		updated, err = ss.skillRepo.GetForUser(ctx, tx, userID, skillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (ss *skillService) recomputeLayout(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	all, err := ss.skillRepo.ListForUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	entities := make([]domain.Skill, 0, len(all))
	for _, s := range all {
		entities = append(entities, toDomain(s))
	}
	for id, pos := range layout.Compute(entities) {
		if err := ss.skillRepo.UpdatePosition(ctx, tx, id, pos.X, pos.Y); err != nil {
			return fmt.Errorf("failed to persist layout: %w", err)
		}
	}
	return nil
}
