package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smaehq/smae-backend/internal/apperr"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/requestdata"
	"github.com/smaehq/smae-backend/internal/types"
)

func newValidationService(env *testEnv, clock domain.Clock) ValidationService {
	return NewValidationService(env.db, env.log, env.skillRepo, env.validationRepo, env.locker, clock)
}

func TestSubmitRejectsLevelSkip(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", domain.BaseLevel, true)
	_, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID: skill.ID,
		Level:   domain.AutonomyLevel,
		Passed:  true,
	})
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected skip refusal, got %v", err)
	}
}

func TestSubmitPassAdvancesAndResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", 2, true)
	err := env.skillRepo.UpdateFields(env.ctx, nil, skill.ID, map[string]interface{}{"fail_count": 2})
	if err != nil {
		t.Fatalf("seed fail count: %v", err)
	}

	result, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID:      skill.ID,
		Level:        domain.AutonomyLevel,
		EvidenceType: "video",
		Evidence:     "performed unaided",
		Passed:       true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Skill.CurrentLevel != domain.AutonomyLevel {
		t.Errorf("CurrentLevel = %d, want %d", result.Skill.CurrentLevel, domain.AutonomyLevel)
	}
	if result.Skill.FailCount != 0 {
		t.Errorf("FailCount = %d, want 0", result.Skill.FailCount)
	}
	if result.Validation.PassedAt == nil {
		t.Error("passing validation should stamp passed_at")
	}
	if result.Validation.CooldownEnd == nil {
		t.Fatal("autonomy pass should stamp cooldown_end")
	}
	wantEnd := fixedTestTime().Add(domain.ConsolidationHours * time.Hour)
	if !result.Validation.CooldownEnd.Equal(wantEnd) {
		t.Errorf("CooldownEnd = %v, want %v", result.Validation.CooldownEnd, wantEnd)
	}
}

func TestSubmitConsolidationGate(t *testing.T) {
	env := newTestEnv(t)

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)

	// No passing Autonomy record at all.
	svc := newValidationService(env, testClock())
	_, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.ConsolidationLevel, Passed: true})
	if _, ok := apperr.AsPolicy(err); !ok {
		t.Fatalf("expected refusal without autonomy pass, got %v", err)
	}

	// Pass Autonomy now; the consolidation window opens 48h later.
	if _, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.AutonomyLevel, Passed: true}); err != nil {
		t.Fatalf("autonomy pass: %v", err)
	}

	_, err = svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.ConsolidationLevel, Passed: true})
	policy, ok := apperr.AsPolicy(err)
	if !ok {
		t.Fatalf("expected cooldown refusal, got %v", err)
	}
	if policy.CooldownEnd == nil {
		t.Error("cooldown refusal should carry cooldown_end")
	}

	// 49h later the same submission goes through.
	later := newValidationService(env, domain.FixedClock{Time: fixedTestTime().Add(49 * time.Hour)})
	result, err := later.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.ConsolidationLevel, Passed: true})
	if err != nil {
		t.Fatalf("consolidation after wait: %v", err)
	}
	if result.Skill.CurrentLevel != domain.ConsolidationLevel {
		t.Errorf("CurrentLevel = %d, want %d", result.Skill.CurrentLevel, domain.ConsolidationLevel)
	}
	if result.Skill.IsActive {
		t.Error("consolidated skill should not stay active")
	}
}

func TestSubmitFailRegression(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)

	result, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID: skill.ID,
		Level:   domain.AutonomyLevel,
		Passed:  false,
	})
	if err != nil {
		t.Fatalf("submit fail: %v", err)
	}
	if result.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1", result.FailCount)
	}
	if result.Skill.CurrentLevel != domain.AutonomyLevel-1 {
		t.Errorf("CurrentLevel = %d, want regression to %d", result.Skill.CurrentLevel, domain.AutonomyLevel-1)
	}
}

func TestSubmitLowLevelFailDoesNotRegress(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", 2, true)
	result, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID: skill.ID,
		Level:   2,
		Passed:  false,
	})
	if err != nil {
		t.Fatalf("submit fail: %v", err)
	}
	if result.Skill.CurrentLevel != 2 {
		t.Errorf("CurrentLevel = %d, want 2 (no regression below autonomy)", result.Skill.CurrentLevel)
	}
}

func TestSubmitThirdFailureSuggestsReinforcement(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)
	err := env.skillRepo.UpdateFields(env.ctx, nil, skill.ID, map[string]interface{}{"fail_count": 2})
	if err != nil {
		t.Fatalf("seed fail count: %v", err)
	}

	result, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID: skill.ID,
		Level:   domain.AutonomyLevel,
		Passed:  false,
	})
	if err != nil {
		t.Fatalf("submit third fail: %v", err)
	}
	if result.FailCount != 3 {
		t.Errorf("FailCount = %d, want 3", result.FailCount)
	}
	if result.Suggestion == "" {
		t.Error("third failure should surface the reinforcement suggestion")
	}
	// The suggestion short-circuits regression.
	if result.Skill.CurrentLevel != domain.AutonomyLevel {
		t.Errorf("CurrentLevel = %d, want %d (no regression on third fail)", result.Skill.CurrentLevel, domain.AutonomyLevel)
	}
	// And it is advisory only: no node was created.
	all, err := env.skillRepo.ListForUser(env.ctx, nil, env.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("skill count = %d, want 1", len(all))
	}
}

func TestPanicDropsTwoLevelsAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)
	pass, err := svc.Submit(env.ctx, SubmitValidationInput{
		SkillID: skill.ID,
		Level:   domain.AutonomyLevel,
		Passed:  true,
	})
	if err != nil {
		t.Fatalf("submit pass: %v", err)
	}

	result, err := svc.Panic(env.ctx, pass.Validation.ID)
	if err != nil {
		t.Fatalf("panic: %v", err)
	}
	if result.NewLevel != domain.AutonomyLevel-2 {
		t.Errorf("NewLevel = %d, want %d", result.NewLevel, domain.AutonomyLevel-2)
	}

	reloaded := env.reload(t, skill.ID)
	if reloaded.FailCount != 0 {
		t.Errorf("FailCount = %d, want 0", reloaded.FailCount)
	}

	var row types.Validation
	if err := env.db.Where("id = ?", pass.Validation.ID).First(&row).Error; err != nil {
		t.Fatalf("reload validation: %v", err)
	}
	if row.Passed {
		t.Error("panicked validation should no longer count as passed")
	}
	if row.PassedAt != nil {
		t.Error("panicked validation should clear passed_at")
	}
}

func TestPanicOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", 2, true)
	pass, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: 2, Passed: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	stranger := requestdata.WithRequestData(env.ctx, &requestdata.RequestData{UserID: uuid.New()})
	_, err = svc.Panic(stranger, pass.Validation.ID)
	if !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("expected not-authorized, got %v", err)
	}
}

func TestCooldownStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	skill := env.createSkill(t, "skill", domain.AutonomyLevel, true)

	status, err := svc.Cooldown(env.ctx, skill.ID)
	if err != nil {
		t.Fatalf("cooldown: %v", err)
	}
	if status.CanAttempt {
		t.Error("no autonomy pass yet, attempt should be closed")
	}

	if _, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.AutonomyLevel, Passed: true}); err != nil {
		t.Fatalf("autonomy pass: %v", err)
	}

	status, err = svc.Cooldown(env.ctx, skill.ID)
	if err != nil {
		t.Fatalf("cooldown: %v", err)
	}
	if status.CanAttempt {
		t.Error("cooldown just started, attempt should be closed")
	}
	if status.RemainingMS <= 0 {
		t.Errorf("RemainingMS = %d, want > 0", status.RemainingMS)
	}

	later := newValidationService(env, domain.FixedClock{Time: fixedTestTime().Add(49 * time.Hour)})
	status, err = later.Cooldown(env.ctx, skill.ID)
	if err != nil {
		t.Fatalf("cooldown: %v", err)
	}
	if !status.CanAttempt {
		t.Error("cooldown elapsed, attempt should be open")
	}
}

func TestSubmitUnknownSkill(t *testing.T) {
	env := newTestEnv(t)
	svc := newValidationService(env, testClock())

	_, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: uuid.New(), Level: domain.BaseLevel, Passed: true})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestHistoryOrdering(t *testing.T) {
	env := newTestEnv(t)

	skill := env.createSkill(t, "skill", domain.BaseLevel, true)
	for i, offset := range []time.Duration{0, time.Hour, 2 * time.Hour} {
		clock := domain.FixedClock{Time: fixedTestTime().Add(offset)}
		svc := newValidationService(env, clock)
		_, err := svc.Submit(env.ctx, SubmitValidationInput{SkillID: skill.ID, Level: domain.BaseLevel, Passed: false})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	svc := newValidationService(env, testClock())
	history, err := svc.History(env.ctx, skill.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].AttemptedAt.After(history[i-1].AttemptedAt) {
			t.Errorf("history not in newest-first order at index %d", i)
		}
	}
}
