package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smaehq/smae-backend/internal/apperr"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/requestdata"
)

func newSkillService(env *testEnv) SkillService {
	return NewSkillService(env.db, env.log, env.skillRepo, env.locker, testClock())
}

func TestCreateSkillRejectsCycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	a, err := svc.Create(env.ctx, CreateSkillInput{Name: "A", Category: "general"})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := svc.Create(env.ctx, CreateSkillInput{Name: "B", Category: "general", Requirements: []uuid.UUID{a.ID}})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	// A requiring B would close the loop.
	_, err = svc.Update(env.ctx, a.ID, UpdateSkillInput{Requirements: &[]uuid.UUID{b.ID}})
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected policy error, got %v", err)
	}

	// The rejected edge set must not have been persisted.
	if got := env.reload(t, a.ID).RequirementIDs(); len(got) != 0 {
		t.Errorf("requirements persisted despite rejection: %v", got)
	}
}

func TestCreateSkillRejectsSelfReference(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	skill, err := svc.Create(env.ctx, CreateSkillInput{Name: "A", Category: "general"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Update(env.ctx, skill.ID, UpdateSkillInput{Requirements: &[]uuid.UUID{skill.ID}})
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestCreateSkillUnknownRequirement(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	_, err := svc.Create(env.ctx, CreateSkillInput{
		Name:         "A",
		Category:     "general",
		Requirements: []uuid.UUID{uuid.New()},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestLevelUpDependencyGate(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	parent := env.createSkill(t, "parent", domain.AutonomyLevel, true)
	child := env.createSkill(t, "child", domain.BaseLevel, false, parent.ID)

	_, err := svc.LevelUp(env.ctx, child.ID)
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected policy refusal while parent below L4, got %v", err)
	}

	err = env.skillRepo.UpdateFields(env.ctx, nil, parent.ID, map[string]interface{}{
		"current_level": domain.ConsolidationLevel,
		"is_active":     false,
	})
	if err != nil {
		t.Fatalf("promote parent: %v", err)
	}

	leveled, err := svc.LevelUp(env.ctx, child.ID)
	if err != nil {
		t.Fatalf("level up after parent consolidated: %v", err)
	}
	if leveled.CurrentLevel != domain.BaseLevel+1 {
		t.Errorf("CurrentLevel = %d, want %d", leveled.CurrentLevel, domain.BaseLevel+1)
	}
	if !leveled.IsActive {
		t.Error("leveled skill should be active")
	}
}

func TestLevelUpWIPGate(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	for i := 0; i < domain.MaxWIP; i++ {
		env.createSkill(t, "active", 2, true)
	}
	fresh := env.createSkill(t, "fresh", domain.BaseLevel, false)

	_, err := svc.LevelUp(env.ctx, fresh.ID)
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected WIP refusal, got %v", err)
	}

	// An already-active skill is not a new activation and passes the cap.
	active, err := env.skillRepo.ListForUser(env.ctx, nil, env.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var firstActive uuid.UUID
	for _, s := range active {
		if s.IsActive {
			firstActive = s.ID
			break
		}
	}
	if _, err := svc.LevelUp(env.ctx, firstActive); err != nil {
		t.Errorf("active skill blocked by WIP cap: %v", err)
	}
}

func TestLevelUpCooldownGate(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)
	env.setPracticed(t, skill.ID, fixedTestTime().Add(-47*time.Hour))

	_, err := svc.LevelUp(env.ctx, skill.ID)
	policy, ok := apperr.AsPolicy(err)
	if !ok {
		t.Fatalf("expected cooldown refusal, got %v", err)
	}
	if policy.CooldownEnd == nil {
		t.Error("cooldown refusal should carry cooldown_end")
	}

	env.setPracticed(t, skill.ID, fixedTestTime().Add(-49*time.Hour))
	leveled, err := svc.LevelUp(env.ctx, skill.ID)
	if err != nil {
		t.Fatalf("level up after cooldown: %v", err)
	}
	if leveled.CurrentLevel != domain.ConsolidationLevel {
		t.Errorf("CurrentLevel = %d, want %d", leveled.CurrentLevel, domain.ConsolidationLevel)
	}
	if leveled.IsActive {
		t.Error("consolidated skill should drop the active flag")
	}
}

func TestLevelUpAtCeiling(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	skill := env.createSkill(t, "done", domain.ConsolidationLevel, false)
	_, err := svc.LevelUp(env.ctx, skill.ID)
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected refusal at ceiling, got %v", err)
	}
}

func TestSkillOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	skill := env.createSkill(t, "mine", domain.BaseLevel, false)

	stranger := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: uuid.New()})
	_, err := svc.Get(stranger, skill.ID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not-found for foreign user, got %v", err)
	}
}

func TestDeleteSkillCascades(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	parent := env.createSkill(t, "parent", domain.ConsolidationLevel, false)
	child := env.createSkill(t, "child", domain.BaseLevel, false, parent.ID)

	if err := svc.Delete(env.ctx, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(env.ctx, parent.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("parent should be gone, got %v", err)
	}
	// The dangling edge on the child must be removed too.
	if got := env.reload(t, child.ID).RequirementIDs(); len(got) != 0 {
		t.Errorf("child still references deleted parent: %v", got)
	}
}

func TestLayoutRecomputedOnCreate(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	root, err := svc.Create(env.ctx, CreateSkillInput{Name: "root", Category: "general"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	child, err := svc.Create(env.ctx, CreateSkillInput{Name: "child", Category: "general", Requirements: []uuid.UUID{root.ID}})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	rootRow := env.reload(t, root.ID)
	childRow := env.reload(t, child.ID)
	if childRow.Y <= rootRow.Y {
		t.Errorf("child Y (%v) should be below root Y (%v)", childRow.Y, rootRow.Y)
	}
}

func TestFastForwardShiftsPractice(t *testing.T) {
	env := newTestEnv(t)
	svc := newSkillService(env)

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)
	env.setPracticed(t, skill.ID, fixedTestTime())

	shifted, err := svc.FastForward(env.ctx, skill.ID, 49)
	if err != nil {
		t.Fatalf("fast forward: %v", err)
	}
	if shifted.LastPracticed == nil {
		t.Fatal("practice time missing after fast forward")
	}
	want := fixedTestTime().Add(-49 * time.Hour)
	if !shifted.LastPracticed.Equal(want) {
		t.Errorf("LastPracticed = %v, want %v", shifted.LastPracticed, want)
	}

	if _, err := svc.FastForward(env.ctx, skill.ID, 0); err == nil {
		t.Error("zero hours should be rejected")
	}
}
