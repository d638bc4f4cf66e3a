package floorplan

import (
	"math"

	"github.com/yeremiapane/restaurant-floor/models"
)

const (
	DefaultFootprint = 80.0
	// DefaultThreshold lets tables that touch or nearly touch qualify while
	// neighbours in the same row with a walkway between them do not.
	DefaultThreshold = 30.0
)

// Geometry holds the fixed table footprint and the adjacency forgiveness margin.
type Geometry struct {
	Footprint float64
	Threshold float64
}

func DefaultGeometry() Geometry {
	return Geometry{Footprint: DefaultFootprint, Threshold: DefaultThreshold}
}

// Point is a top-left position in floor-plan pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func positionOf(t models.Table) Point {
	return Point{X: t.X, Y: t.Y}
}

func (g Geometry) center(t models.Table) Point {
	half := g.Footprint / 2
	return Point{X: t.X + half, Y: t.Y + half}
}

// Reach is the largest center distance at which two tables count as adjacent.
func (g Geometry) Reach() float64 {
	return g.Footprint + g.Threshold
}

// CenterDistance is the Euclidean distance between the centers of a and b.
func (g Geometry) CenterDistance(a, b models.Table) float64 {
	ca, cb := g.center(a), g.center(b)
	return math.Hypot(ca.X-cb.X, ca.Y-cb.Y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AdjacentTo returns the ids of the tables adjacent to tableID, in the order
// they appear in tables. Hidden tables, merge parents and the queried table
// itself are never candidates, and a hidden or merged subject has no
// neighbours. The result is computed fresh on every call so
// it always reflects live drag positions.
func AdjacentTo(tableID uint, tables []models.Table, g Geometry) ([]uint, error) {
	if !finite(g.Footprint) || g.Footprint <= 0 || !finite(g.Threshold) || g.Threshold < 0 {
		return nil, &AdjacencyQueryError{TableID: tableID, Reason: "invalid footprint or threshold"}
	}

	var subject *models.Table
	for i := range tables {
		if tables[i].ID == tableID {
			subject = &tables[i]
			break
		}
	}
	if subject == nil {
		return nil, &AdjacencyQueryError{TableID: tableID, Reason: "table not in layout"}
	}
	if !finite(subject.X) || !finite(subject.Y) {
		return nil, &AdjacencyQueryError{TableID: tableID, Reason: "non-finite position"}
	}
	// Merge parents and hidden children never pair up, from either side.
	if subject.IsHidden || subject.IsMerged {
		return []uint{}, nil
	}

	reach := g.Reach()
	adjacent := make([]uint, 0)
	for _, other := range tables {
		if other.ID == tableID || other.IsHidden || other.IsMerged {
			continue
		}
		if !finite(other.X) || !finite(other.Y) {
			return nil, &AdjacencyQueryError{TableID: other.ID, Reason: "non-finite position"}
		}
		if g.CenterDistance(*subject, other) <= reach {
			adjacent = append(adjacent, other.ID)
		}
	}
	return adjacent, nil
}
