package layout

import (
	"sort"

	"github.com/google/uuid"

	"github.com/smaehq/smae-backend/internal/domain"
	"github.com/smaehq/smae-backend/internal/graph"
)

// Layered layout for the requirement DAG: roots on top, each node one row
// below its deepest requirement. Coordinates are display-only and carry no
// business meaning.
const (
	HorizontalSpacing = 350.0
	VerticalSpacing   = 250.0
)

type Position struct {
	X float64
	Y float64
}

// Compute assigns a position to every skill. The result is a pure function
// of the input set: rows are sorted by category with the ID as tiebreak, so
// two invocations over the same skills always agree.
func Compute(skills []domain.Skill) map[uuid.UUID]Position {
	positions := make(map[uuid.UUID]Position, len(skills))
	if len(skills) == 0 {
		return positions
	}

	adj := make(graph.Adjacency, len(skills))
	byID := make(map[uuid.UUID]domain.Skill, len(skills))
	for _, s := range skills {
		adj[s.ID] = s.Requirements
		byID[s.ID] = s
	}

	depths := graph.Depths(adj)

	layers := make(map[int][]domain.Skill)
	for id, depth := range depths {
		s, ok := byID[id]
		if !ok {
			continue
		}
		layers[depth] = append(layers[depth], s)
	}

	for depth, row := range layers {
		sort.Slice(row, func(i, j int) bool {
			if row[i].Category != row[j].Category {
				return row[i].Category < row[j].Category
			}
			return row[i].ID.String() < row[j].ID.String()
		})

		rowWidth := float64(len(row)-1) * HorizontalSpacing
		startX := -rowWidth / 2
		for i, s := range row {
			positions[s.ID] = Position{
				X: startX + float64(i)*HorizontalSpacing,
				Y: float64(depth) * VerticalSpacing,
			}
		}
	}

	return positions
}
