package types

import (
	"time"

	"github.com/google/uuid"
)

// Skill is the persisted shape of a skill node. CurrentLevel is the canonical
// 1..4 scale; the legacy 0..5 column is kept only as migration input and is
// never read by business logic.
type Skill struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User              `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Name            string             `gorm:"not null;column:name" json:"name"`
	Category        string             `gorm:"not null;column:category" json:"category"`
	CurrentLevel    int                `gorm:"not null;default:1;column:current_level" json:"current_level"`
	IsActive        bool               `gorm:"not null;default:false;column:is_active" json:"is_active"`
	FailCount       int                `gorm:"not null;default:0;column:fail_count" json:"fail_count"`
	LastPracticed   *time.Time         `gorm:"column:last_practiced" json:"last_practiced,omitempty"`
	LegacyLevel     int                `gorm:"not null;default:0;column:level" json:"-"`
	IsHito          bool               `gorm:"not null;default:false;column:is_hito" json:"is_hito"`
	IsReinforcement bool               `gorm:"not null;default:false;column:is_reinforcement" json:"is_reinforcement"`
	ParentSkillID   *uuid.UUID         `gorm:"type:uuid;column:parent_skill_id" json:"parent_skill_id,omitempty"`
	X               float64            `gorm:"not null;default:0;column:x" json:"x"`
	Y               float64            `gorm:"not null;default:0;column:y" json:"y"`
	Requirements    []SkillRequirement `gorm:"constraint:OnDelete:CASCADE;foreignKey:SkillID;references:ID" json:"requirements,omitempty"`
	CreatedAt       time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"not null" json:"updated_at"`
}

func (Skill) TableName() string { return "skill" }

// RequirementIDs projects the preloaded edge rows to plain IDs, the shape
// clients and the graph validator work with.
func (s *Skill) RequirementIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Requirements))
	for _, r := range s.Requirements {
		ids = append(ids, r.RequirementID)
	}
	return ids
}

type SkillRequirement struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SkillID       uuid.UUID `gorm:"type:uuid;not null;index:idx_skill_requirement,unique" json:"skill_id"`
	RequirementID uuid.UUID `gorm:"type:uuid;not null;index:idx_skill_requirement,unique" json:"requirement_id"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (SkillRequirement) TableName() string { return "skill_requirement" }
