package floorplan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yeremiapane/restaurant-floor/models"
)

// Patch is a partial update applied by Store.Mutate. Nil fields are left alone.
type Patch struct {
	X        *float64
	Y        *float64
	Status   *string
	Capacity *int
}

// MoveTo builds a Patch that only changes the position.
func MoveTo(p Point) Patch {
	x, y := p.X, p.Y
	return Patch{X: &x, Y: &y}
}

// Store is the in-memory layout of one floor. Every read and write made by
// the spatial index, the sync manager and the merge machine goes through it.
type Store struct {
	floorID uint
	mu      sync.RWMutex
	tables  map[uint]models.Table
}

func NewStore(floorID uint, tables []models.Table) *Store {
	s := &Store{
		floorID: floorID,
		tables:  make(map[uint]models.Table, len(tables)),
	}
	for _, t := range tables {
		s.tables[t.ID] = t.Clone()
	}
	return s
}

func (s *Store) FloorID() uint {
	return s.floorID
}

func (s *Store) Get(id uint) (models.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return models.Table{}, false
	}
	return t.Clone(), true
}

// List returns every table on the floor, hidden children included, ordered by id.
func (s *Store) List() []models.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(models.Table) bool { return true })
}

// ListVisible returns the tables that take part in layout and adjacency.
func (s *Store) ListVisible() []models.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(t models.Table) bool { return !t.IsHidden })
}

func (s *Store) sortedLocked(keep func(models.Table) bool) []models.Table {
	out := make([]models.Table, 0, len(s.tables))
	for _, t := range s.tables {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Mutate(id uint, patch Patch) (models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[id]
	if !ok {
		return models.Table{}, fmt.Errorf("mutate %d: %w", id, ErrTableNotFound)
	}
	if patch.Status != nil && !models.IsValidTableStatus(*patch.Status) {
		return models.Table{}, fmt.Errorf("mutate %d: %w: %q", id, ErrInvalidStatus, *patch.Status)
	}
	if patch.X != nil {
		t.X = *patch.X
	}
	if patch.Y != nil {
		t.Y = *patch.Y
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Capacity != nil {
		t.Capacity = *patch.Capacity
	}
	s.tables[id] = t
	return t.Clone(), nil
}

// Put inserts or replaces a table, e.g. after creation or a server refresh.
func (s *Store) Put(t models.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID] = t.Clone()
}

// Remove deletes a table. Deleting a merge parent also deletes its hidden
// children. The ids actually removed are returned.
func (s *Store) Remove(id uint) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[id]
	if !ok {
		return nil
	}
	removed := []uint{id}
	delete(s.tables, id)
	for _, childID := range t.MergedTableIDs {
		if child, ok := s.tables[childID]; ok && child.ParentTableID != nil && *child.ParentTableID == id {
			delete(s.tables, childID)
			removed = append(removed, childID)
		}
	}
	return removed
}

// MergeInto hides childIDs inside parentID. originals carries the position
// each child returns to on unmerge; a child missing from it keeps its
// current position as the original.
func (s *Store) MergeInto(parentID uint, childIDs []uint, originals map[uint]Point) (models.Table, error) {
	if len(childIDs) == 0 {
		return models.Table{}, ErrInvalidMergeCandidate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.tables[parentID]
	if !ok {
		return models.Table{}, fmt.Errorf("merge into %d: %w", parentID, ErrTableNotFound)
	}
	if parent.IsHidden || parent.ParentTableID != nil {
		return models.Table{}, fmt.Errorf("merge into %d: %w", parentID, ErrNestedMerge)
	}

	seen := make(map[uint]bool, len(childIDs))
	for _, childID := range childIDs {
		if childID == parentID || seen[childID] {
			return models.Table{}, fmt.Errorf("merge into %d: duplicate member %d: %w", parentID, childID, ErrInvalidMergeCandidate)
		}
		seen[childID] = true
		child, ok := s.tables[childID]
		if !ok {
			return models.Table{}, fmt.Errorf("merge child %d: %w", childID, ErrTableNotFound)
		}
		if child.IsHidden || child.IsMerged {
			return models.Table{}, fmt.Errorf("merge child %d: %w", childID, ErrNestedMerge)
		}
	}

	for _, childID := range childIDs {
		child := s.tables[childID]
		original, ok := originals[childID]
		if !ok {
			original = positionOf(child)
		}
		pid := parentID
		child.IsHidden = true
		child.ParentTableID = &pid
		child.OriginalX = original.X
		child.OriginalY = original.Y
		s.tables[childID] = child
	}

	parent.IsMerged = true
	parent.MergedTableIDs = append(append([]uint(nil), parent.MergedTableIDs...), childIDs...)
	s.tables[parentID] = parent
	return parent.Clone(), nil
}

// Unmerge restores every child of parentID to its original position and
// clears the parent's merge flags. The restored children are returned.
func (s *Store) Unmerge(parentID uint) ([]models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.tables[parentID]
	if !ok {
		return nil, fmt.Errorf("unmerge %d: %w", parentID, ErrTableNotFound)
	}
	if !parent.IsMerged {
		return nil, fmt.Errorf("unmerge %d: %w", parentID, ErrNotMerged)
	}

	children := make([]models.Table, 0, len(parent.MergedTableIDs))
	for _, childID := range parent.MergedTableIDs {
		child, ok := s.tables[childID]
		if !ok {
			continue
		}
		child.IsHidden = false
		child.ParentTableID = nil
		child.X = child.OriginalX
		child.Y = child.OriginalY
		s.tables[childID] = child
		children = append(children, child.Clone())
	}

	parent.IsMerged = false
	parent.MergedTableIDs = nil
	s.tables[parentID] = parent
	return children, nil
}

// GroupCapacity is the seat count shown for a table: its own capacity plus
// that of any children hidden inside it.
func (s *Store) GroupCapacity(id uint) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[id]
	if !ok {
		return 0, fmt.Errorf("capacity %d: %w", id, ErrTableNotFound)
	}
	total := t.Capacity
	for _, childID := range t.MergedTableIDs {
		if child, ok := s.tables[childID]; ok {
			total += child.Capacity
		}
	}
	return total, nil
}
