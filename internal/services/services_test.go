package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/locks"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/requestdata"
	"github.com/smaehq/smae-backend/internal/types"
)

type testEnv struct {
	db             *gorm.DB
	log            *logger.Logger
	skillRepo      repos.SkillRepo
	validationRepo repos.ValidationRepo
	locker         locks.SkillLocker
	userID         uuid.UUID
	ctx            context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = gormDB.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Skill{},
		&types.SkillRequirement{},
		&types.Validation{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	user := &types.User{
		ID:       uuid.New(),
		Email:    "test@example.com",
		Password: "irrelevant",
		Name:     "Test",
	}
	if err := gormDB.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	ctx := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: user.ID,
	})

	return &testEnv{
		db:             gormDB,
		log:            log,
		skillRepo:      repos.NewSkillRepo(gormDB, log),
		validationRepo: repos.NewValidationRepo(gormDB, log),
		locker:         locks.NewLocalLocker(),
		userID:         user.ID,
		ctx:            ctx,
	}
}

func (env *testEnv) createSkill(t *testing.T, name string, level int, active bool, reqIDs ...uuid.UUID) *types.Skill {
	t.Helper()
	skill := &types.Skill{
		ID:           uuid.New(),
		UserID:       env.userID,
		Name:         name,
		Category:     "general",
		CurrentLevel: level,
		IsActive:     active,
	}
	if err := env.skillRepo.Create(env.ctx, nil, skill, reqIDs); err != nil {
		t.Fatalf("failed to create skill %s: %v", name, err)
	}
	return skill
}

func (env *testEnv) reload(t *testing.T, skillID uuid.UUID) *types.Skill {
	t.Helper()
	skill, err := env.skillRepo.GetForUser(env.ctx, nil, env.userID, skillID)
	if err != nil {
		t.Fatalf("failed to reload skill: %v", err)
	}
	if skill == nil {
		t.Fatalf("skill %s not found", skillID)
	}
	return skill
}

func (env *testEnv) setPracticed(t *testing.T, skillID uuid.UUID, at time.Time) {
	t.Helper()
	err := env.skillRepo.UpdateFields(env.ctx, nil, skillID, map[string]interface{}{
		"last_practiced": at,
	})
	if err != nil {
		t.Fatalf("failed to set practice time: %v", err)
	}
}

func fixedTestTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testClock() domain.FixedClock {
	return domain.FixedClock{Time: fixedTestTime()}
}
