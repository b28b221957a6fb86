package layout

import (
	"testing"

	"github.com/google/uuid"

	"github.com/smaehq/smae-backend/internal/domain"
)

func TestComputeLayers(t *testing.T) {
	root := domain.Skill{ID: uuid.New(), Category: "base"}
	child := domain.Skill{ID: uuid.New(), Category: "base", Requirements: []uuid.UUID{root.ID}}
	grandchild := domain.Skill{ID: uuid.New(), Category: "base", Requirements: []uuid.UUID{child.ID}}

	positions := Compute([]domain.Skill{root, child, grandchild})

	if positions[root.ID].Y != 0 {
		t.Errorf("root Y = %v, want 0", positions[root.ID].Y)
	}
	if positions[child.ID].Y != VerticalSpacing {
		t.Errorf("child Y = %v, want %v", positions[child.ID].Y, VerticalSpacing)
	}
	if positions[grandchild.ID].Y != 2*VerticalSpacing {
		t.Errorf("grandchild Y = %v, want %v", positions[grandchild.ID].Y, 2*VerticalSpacing)
	}
}

func TestComputeRowSpacingAndCentering(t *testing.T) {
	a := domain.Skill{ID: uuid.New(), Category: "a"}
	b := domain.Skill{ID: uuid.New(), Category: "b"}
	c := domain.Skill{ID: uuid.New(), Category: "c"}

	positions := Compute([]domain.Skill{a, b, c})

	if positions[a.ID].X != -HorizontalSpacing {
		t.Errorf("first X = %v, want %v", positions[a.ID].X, -HorizontalSpacing)
	}
	if positions[b.ID].X != 0 {
		t.Errorf("middle X = %v, want 0", positions[b.ID].X)
	}
	if positions[c.ID].X != HorizontalSpacing {
		t.Errorf("last X = %v, want %v", positions[c.ID].X, HorizontalSpacing)
	}
}

func TestComputeDeterministic(t *testing.T) {
	skills := []domain.Skill{
		{ID: uuid.New(), Category: "m"},
		{ID: uuid.New(), Category: "m"},
		{ID: uuid.New(), Category: "a"},
	}

	first := Compute(skills)
	reversed := []domain.Skill{skills[2], skills[1], skills[0]}
	second := Compute(reversed)

	for _, s := range skills {
		if first[s.ID] != second[s.ID] {
			t.Errorf("position for %s differs across runs: %v vs %v", s.ID, first[s.ID], second[s.ID])
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	if got := Compute(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %d entries", len(got))
	}
}
