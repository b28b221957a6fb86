package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// S.M.A.E. level scale. A skill starts at BaseLevel ("not started"); levels
// climb one at a time through Exposure, Copy and Autonomy up to
// Consolidation, which is the ceiling.
const (
	BaseLevel          = 1
	AutonomyLevel      = 3
	ConsolidationLevel = 4
	MaxLevel           = ConsolidationLevel

	// MaxWIP caps how many skills may be active at once.
	MaxWIP = 3

	// ConsolidationHours is the mandatory wait between passing Autonomy and
	// attempting Consolidation.
	ConsolidationHours = 48
)

// Skill is an immutable snapshot of a skill's progression state. Transitions
// (LevelUp, Regress, ApplyPanic, ...) return a new value; persistence is the
// caller's concern.
type Skill struct {
	ID              uuid.UUID
	Name            string
	Category        string
	CurrentLevel    int
	IsActive        bool
	FailCount       int
	LastPracticed   *time.Time
	IsHito          bool
	IsReinforcement bool
	ParentSkillID   *uuid.UUID
	Requirements    []uuid.UUID
}

// Lookup resolves a skill ID within the owner's graph. A nil result counts
// as an unsatisfied requirement.
type Lookup func(id uuid.UUID) *Skill

// Decision is the outcome of a gating check. Policy refusals are normal
// results, not errors.
type Decision struct {
	Allowed       bool
	Reason        string
	CooldownHours float64
}

// IsUnlocked reports whether every requirement has reached Consolidation.
func (s Skill) IsUnlocked(lookup Lookup) bool {
	for _, reqID := range s.Requirements {
		parent := lookup(reqID)
		if parent == nil || parent.CurrentLevel < ConsolidationLevel {
			return false
		}
	}
	return true
}

// IsInCooldown reports whether the 48h consolidation wait is still running.
// Cooldown only ever gates the Autonomy -> Consolidation transition.
func (s Skill) IsInCooldown(clock Clock) bool {
	if s.CurrentLevel != AutonomyLevel || s.LastPracticed == nil {
		return false
	}
	return clock.Now().Sub(*s.LastPracticed).Hours() < ConsolidationHours
}

// CooldownHoursRemaining is zero whenever the skill is not in cooldown.
func (s Skill) CooldownHoursRemaining(clock Clock) float64 {
	if !s.IsInCooldown(clock) {
		return 0
	}
	elapsed := clock.Now().Sub(*s.LastPracticed).Hours()
	return math.Max(0, ConsolidationHours-elapsed)
}

// CanLevelUp evaluates the gating conditions in a fixed order so the first
// failing reason is the one reported: ceiling, dependencies, WIP, cooldown.
// The WIP cap only applies when activating a skill that is not yet started.
func (s Skill) CanLevelUp(lookup Lookup, currentWIP int, clock Clock) Decision {
	if s.CurrentLevel >= MaxLevel {
		return Decision{Reason: "Consolidation (L4) already reached, nothing left to level up."}
	}
	if !s.IsUnlocked(lookup) {
		return Decision{Reason: "Parent skills must reach Consolidation (L4) first."}
	}
	if !s.IsActive && s.CurrentLevel <= BaseLevel && currentWIP >= MaxWIP {
		return Decision{Reason: "WIP limit reached. Finish or pause an active skill first."}
	}
	if s.IsInCooldown(clock) {
		remaining := s.CooldownHoursRemaining(clock)
		return Decision{
			Reason:        fmt.Sprintf("Cooldown active: wait %dh before consolidating.", int(math.Ceil(remaining))),
			CooldownHours: remaining,
		}
	}
	return Decision{Allowed: true}
}

// LevelUp advances exactly one level. Reaching the ceiling clears the active
// flag so mastery does not count against the WIP budget.
func (s Skill) LevelUp(clock Clock) Skill {
	now := clock.Now()
	next := s
	next.CurrentLevel = s.CurrentLevel + 1
	next.LastPracticed = &now
	next.IsActive = next.CurrentLevel < MaxLevel
	return next
}

// PassValidation records a passing validation at the given level: level is
// set, failures reset and the practice timestamp updates.
func (s Skill) PassValidation(level int, clock Clock) Skill {
	now := clock.Now()
	next := s
	next.CurrentLevel = level
	next.FailCount = 0
	next.LastPracticed = &now
	next.IsActive = level < MaxLevel
	return next
}

// RecordFail increments the fail counter. The level itself is untouched;
// regression is a separate, conditional step.
func (s Skill) RecordFail() Skill {
	next := s
	next.FailCount = s.FailCount + 1
	return next
}

// Regress kicks the skill back to the given level without touching the
// practice timestamp.
func (s Skill) Regress(level int) Skill {
	next := s
	next.CurrentLevel = level
	if next.CurrentLevel < BaseLevel {
		next.CurrentLevel = BaseLevel
	}
	next.IsActive = true
	return next
}

// ApplyPanic is the brutal-honesty reset: drop two levels (floored at base)
// and wipe the fail counter.
func (s Skill) ApplyPanic() Skill {
	next := s
	next.CurrentLevel = s.CurrentLevel - 2
	if next.CurrentLevel < BaseLevel {
		next.CurrentLevel = BaseLevel
	}
	next.FailCount = 0
	next.IsActive = true
	return next
}

// FastForward shifts the practice timestamp into the past, simulating
// elapsed hours. Debug facility; a no-op when the skill was never practiced.
func (s Skill) FastForward(hours int) Skill {
	if s.LastPracticed == nil {
		return s
	}
	shifted := s.LastPracticed.Add(-time.Duration(hours) * time.Hour)
	next := s
	next.LastPracticed = &shifted
	return next
}
