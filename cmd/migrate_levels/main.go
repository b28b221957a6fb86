package main

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/smaehq/smae-backend/internal/db"
	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/logger"
	"github.com/smaehq/smae-backend/internal/types"
)

// One-shot migration from the legacy 0..5 level column onto the 1..4 scale.
// Legacy 0 (not started) and 1 both map to base; 5 (maintenance) maps to the
// Consolidation ceiling with the active flag cleared.
func main() {
	log, err := logger.New("production")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}

	migrated := 0
	err = postgresService.DB().Transaction(func(tx *gorm.DB) error {
		var skills []*types.Skill
		if err := tx.Find(&skills).Error; err != nil {
			return err
		}
		for _, skill := range skills {
			level := skill.LegacyLevel
			if level < domain.BaseLevel {
				level = domain.BaseLevel
			}
			active := skill.IsActive
			if level > domain.MaxLevel {
				level = domain.MaxLevel
				active = false
			}
			if level == skill.CurrentLevel && active == skill.IsActive {
				continue
			}
			err := tx.Model(&types.Skill{}).
				Where("id = ?", skill.ID).
				Updates(map[string]interface{}{
					"current_level": level,
					"is_active":     active,
				}).Error
			if err != nil {
				return err
			}
			migrated++
		}
		return nil
	})
	if err != nil {
		log.Error("Level migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("Level migration complete", "skills_updated", migrated)
}
