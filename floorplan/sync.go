package floorplan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
)

// DefaultDebounce is the quiescence window after the last drag tick before
// the position is written to the table service.
const DefaultDebounce = 500 * time.Millisecond

// SyncManager owns the optimistic position of each table during interactive
// movement. Drag ticks land in the store immediately; persistence is
// debounced per table and coalesced so only the latest position is written.
//
// A failed write never reverts the optimistic position. It is reported to
// onFailure and the next successful write reconciles the service.
type SyncManager struct {
	store    *Store
	remote   TableService
	geometry Geometry
	delay    time.Duration
	log      logrus.FieldLogger

	gate        func() error
	onPersisted func(models.Table)
	onFailure   func(*PersistenceFailure)

	mu         sync.Mutex
	snapshots  map[uint]Point
	timers     map[uint]*time.Timer
	generation map[uint]uint64
	pending    map[uint]Point
	inflight   map[uint]bool
	queued     map[uint]Point
	committed  map[uint]Point
	settled    *sync.Cond
	writes     sync.WaitGroup
}

func NewSyncManager(store *Store, remote TableService, geometry Geometry, delay time.Duration, log logrus.FieldLogger) *SyncManager {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &SyncManager{
		store:       store,
		remote:      remote,
		geometry:    geometry,
		delay:       delay,
		log:         log,
		gate:        func() error { return nil },
		onPersisted: func(models.Table) {},
		onFailure:   func(*PersistenceFailure) {},
		snapshots:   make(map[uint]Point),
		timers:      make(map[uint]*time.Timer),
		generation:  make(map[uint]uint64),
		pending:     make(map[uint]Point),
		inflight:    make(map[uint]bool),
		queued:      make(map[uint]Point),
		committed:   make(map[uint]Point),
	}
	s.settled = sync.NewCond(&s.mu)
	return s
}

// SetGate installs the check every drag command runs first. While it
// refuses, a table in hand can neither move nor drop.
func (s *SyncManager) SetGate(gate func() error) {
	s.gate = gate
}

func (s *SyncManager) OnPersisted(fn func(models.Table)) {
	s.onPersisted = fn
}

func (s *SyncManager) OnFailure(fn func(*PersistenceFailure)) {
	s.onFailure = fn
}

// BeginDrag snapshots the table's current position for a later rollback.
// A drag that was begun and never ended keeps its first snapshot.
func (s *SyncManager) BeginDrag(tableID uint) error {
	if err := s.gate(); err != nil {
		return err
	}
	t, ok := s.store.Get(tableID)
	if !ok {
		return fmt.Errorf("begin drag %d: %w", tableID, ErrTableNotFound)
	}
	if t.IsHidden {
		return fmt.Errorf("begin drag %d: %w", tableID, ErrTableHidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[tableID]; !ok {
		s.snapshots[tableID] = positionOf(t)
	}
	return nil
}

// MoveDrag applies the position optimistically and re-arms the debounce timer.
func (s *SyncManager) MoveDrag(tableID uint, x, y float64) (models.Table, error) {
	if err := s.gate(); err != nil {
		return models.Table{}, fmt.Errorf("move drag %d: %w", tableID, err)
	}
	p := Point{X: x, Y: y}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[tableID]; !ok {
		return models.Table{}, fmt.Errorf("move drag %d: %w", tableID, ErrNoSnapshot)
	}
	t, err := s.store.Mutate(tableID, MoveTo(p))
	if err != nil {
		return models.Table{}, err
	}

	s.cancelTimerLocked(tableID)
	s.pending[tableID] = p
	gen := s.generation[tableID]
	s.timers[tableID] = time.AfterFunc(s.delay, func() { s.fire(tableID, gen) })
	return t, nil
}

// EndDrag applies the drop position and checks adjacency there. With no
// neighbours the position is persisted at once and the snapshot discarded.
// Otherwise the neighbours are returned, nothing is persisted, and the
// snapshot is kept for the merge decision.
func (s *SyncManager) EndDrag(tableID uint, x, y float64) (models.Table, []uint, error) {
	if err := s.gate(); err != nil {
		return models.Table{}, nil, fmt.Errorf("end drag %d: %w", tableID, err)
	}
	p := Point{X: x, Y: y}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[tableID]; !ok {
		return models.Table{}, nil, fmt.Errorf("end drag %d: %w", tableID, ErrNoSnapshot)
	}
	t, err := s.store.Mutate(tableID, MoveTo(p))
	if err != nil {
		return models.Table{}, nil, err
	}
	s.cancelTimerLocked(tableID)

	adjacent, err := AdjacentTo(tableID, s.store.List(), s.geometry)
	if err != nil {
		return t, nil, err
	}
	if len(adjacent) > 0 {
		return t, adjacent, nil
	}

	delete(s.snapshots, tableID)
	s.enqueueLocked(tableID, p)
	return t, nil, nil
}

// Rollback restores the position captured by BeginDrag and persists it.
func (s *SyncManager) Rollback(tableID uint) (models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tableID]
	if !ok {
		return models.Table{}, fmt.Errorf("rollback %d: %w", tableID, ErrNoSnapshot)
	}
	s.cancelTimerLocked(tableID)
	delete(s.snapshots, tableID)

	t, err := s.store.Mutate(tableID, MoveTo(snap))
	if err != nil {
		return models.Table{}, err
	}
	s.enqueueLocked(tableID, snap)
	return t, nil
}

// Snapshot returns the pre-drag position recorded for the table, if any.
func (s *SyncManager) Snapshot(tableID uint) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.snapshots[tableID]
	return p, ok
}

// Release forgets the snapshot and any unsent drag position of a table,
// e.g. once it has been absorbed into a merge or deleted.
func (s *SyncManager) Release(tableID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked(tableID)
	delete(s.snapshots, tableID)
}

// Persist writes p for the table through the per-table write queue.
func (s *SyncManager) Persist(tableID uint, p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(tableID, p)
}

// Settle blocks until no position write is queued or in flight for any of
// the tables.
func (s *SyncManager) Settle(tableIDs []uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.busyLocked(tableIDs) {
		s.settled.Wait()
	}
}

func (s *SyncManager) busyLocked(tableIDs []uint) bool {
	for _, id := range tableIDs {
		if s.inflight[id] {
			return true
		}
	}
	return false
}

// Committed returns the last position the table service accepted.
func (s *SyncManager) Committed(tableID uint) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.committed[tableID]
	return p, ok
}

// HasPendingWrite reports whether a debounced write is armed for the table.
func (s *SyncManager) HasPendingWrite(tableID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[tableID]
	return ok
}

// Flush fires every armed debounce timer immediately.
func (s *SyncManager) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tableID := range s.timers {
		p, ok := s.pending[tableID]
		s.cancelTimerLocked(tableID)
		if ok {
			s.enqueueLocked(tableID, p)
		}
	}
}

// Wait blocks until every in-flight write has returned.
func (s *SyncManager) Wait() {
	s.writes.Wait()
}

func (s *SyncManager) Close() {
	s.Flush()
	s.Wait()
}

// cancelTimerLocked drops the armed timer and its position. Bumping the
// generation makes a timer that already fired but has not yet taken the
// lock a no-op.
func (s *SyncManager) cancelTimerLocked(tableID uint) {
	if t, ok := s.timers[tableID]; ok {
		t.Stop()
		delete(s.timers, tableID)
	}
	delete(s.pending, tableID)
	s.generation[tableID]++
}

func (s *SyncManager) fire(tableID uint, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation[tableID] != gen {
		return
	}
	delete(s.timers, tableID)
	p, ok := s.pending[tableID]
	if !ok {
		return
	}
	delete(s.pending, tableID)
	s.enqueueLocked(tableID, p)
}

// enqueueLocked keeps at most one write in flight per table. A position
// arriving while a write is in flight replaces any earlier queued one.
func (s *SyncManager) enqueueLocked(tableID uint, p Point) {
	if s.inflight[tableID] {
		s.queued[tableID] = p
		return
	}
	s.inflight[tableID] = true
	s.writes.Add(1)
	go s.writeLoop(tableID, p)
}

func (s *SyncManager) writeLoop(tableID uint, p Point) {
	defer s.writes.Done()
	for {
		t, err := s.remote.UpdatePosition(context.Background(), tableID, p.X, p.Y)

		s.mu.Lock()
		if err == nil {
			s.committed[tableID] = p
		}
		next, more := s.queued[tableID]
		if more {
			delete(s.queued, tableID)
		} else {
			delete(s.inflight, tableID)
			s.settled.Broadcast()
		}
		s.mu.Unlock()

		if err != nil {
			s.log.WithFields(logrus.Fields{"table_id": tableID, "x": p.X, "y": p.Y}).
				WithError(err).Warn("position sync failed, keeping optimistic position")
			s.onFailure(&PersistenceFailure{Op: OpUpdatePosition, TableIDs: []uint{tableID}, Err: err})
		} else {
			s.onPersisted(t)
		}

		if !more {
			return
		}
		p = next
	}
}
