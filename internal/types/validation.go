package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Validation is one evidence submission for a skill at a level. Records are
// append-only: only the panic operation (flips passed off) and the
// notification sweep (sets notified) mutate them after creation.
type Validation struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SkillID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"skill_id"`
	Skill        *Skill         `gorm:"constraint:OnDelete:CASCADE;foreignKey:SkillID;references:ID" json:"skill,omitempty"`
	Level        int            `gorm:"not null;column:level" json:"level"`
	EvidenceType string         `gorm:"not null;column:evidence_type" json:"evidence_type"`
	Evidence     string         `gorm:"type:text;column:evidence" json:"evidence"`
	Passed       bool           `gorm:"not null;default:false;column:passed" json:"passed"`
	AttemptedAt  time.Time      `gorm:"not null;column:attempted_at;index" json:"attempted_at"`
	PassedAt     *time.Time     `gorm:"column:passed_at" json:"passed_at,omitempty"`
	CooldownEnd  *time.Time     `gorm:"column:cooldown_end" json:"cooldown_end,omitempty"`
	Notified     bool           `gorm:"not null;default:false;column:notified" json:"notified"`
	Analysis     datatypes.JSON `gorm:"type:jsonb;column:analysis" json:"analysis,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Validation) TableName() string { return "validation" }
