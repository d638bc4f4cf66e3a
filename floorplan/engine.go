package floorplan

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
)

type Options struct {
	Geometry          Geometry
	Debounce          time.Duration
	AnimationDuration time.Duration
	Notifier          Notifier
	Logger            logrus.FieldLogger
	// OnFailure is called for every failed table service call, after the
	// sync_failed event has been emitted.
	OnFailure func(floorID uint, failure *PersistenceFailure)
}

// DropResult describes what happened when a drag ended. Pending is set when
// the drop touched other tables and a merge proposal is now open.
type DropResult struct {
	Table    models.Table  `json:"table"`
	Adjacent []uint        `json:"adjacent"`
	Pending  *PendingState `json:"pending,omitempty"`
}

// Engine binds the layout store, sync manager and merge machine of one floor
// and turns UI events into commands on them.
type Engine struct {
	floorID  uint
	geometry Geometry
	store    *Store
	sync     *SyncManager
	merge    *MergeMachine
	remote   TableService
	notifier Notifier
	calls    *dispatcher
	log      logrus.FieldLogger
}

func NewEngine(floorID uint, tables []models.Table, remote TableService, opts Options) *Engine {
	if opts.Geometry == (Geometry{}) {
		opts.Geometry = DefaultGeometry()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	log := opts.Logger.WithField("floor_id", floorID)

	e := &Engine{
		floorID:  floorID,
		geometry: opts.Geometry,
		store:    NewStore(floorID, tables),
		remote:   remote,
		notifier: opts.Notifier,
		log:      log,
	}

	onFailure := func(f *PersistenceFailure) {
		e.notifier.Notify(Event{Type: EventSyncFailed, FloorID: floorID, Data: map[string]interface{}{
			"op":        f.Op,
			"table_ids": f.TableIDs,
			"error":     f.Err.Error(),
		}})
		if opts.OnFailure != nil {
			opts.OnFailure(floorID, f)
		}
	}
	e.calls = newDispatcher(log, onFailure)

	e.sync = NewSyncManager(e.store, remote, opts.Geometry, opts.Debounce, log)
	e.sync.OnFailure(onFailure)
	e.sync.OnPersisted(func(t models.Table) {
		e.notifier.Notify(Event{Type: EventTableUpdate, FloorID: floorID, Data: t})
	})

	e.merge = NewMergeMachine(e.store, e.sync, remote, opts.Notifier, e.calls, opts.AnimationDuration, log)
	e.sync.SetGate(e.merge.DragAllowed)
	return e
}

func (e *Engine) FloorID() uint { return e.floorID }

func (e *Engine) Geometry() Geometry { return e.geometry }

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Sync() *SyncManager { return e.sync }

func (e *Engine) Merge() *MergeMachine { return e.merge }

func (e *Engine) MergeState() State { return e.merge.State() }

func (e *Engine) Animations() []Animation { return e.merge.Animations() }

func (e *Engine) Table(id uint) (models.Table, error) {
	t, ok := e.store.Get(id)
	if !ok {
		return models.Table{}, fmt.Errorf("table %d: %w", id, ErrTableNotFound)
	}
	return t, nil
}

// Tables lists the floor layout. Hidden merge children are only included
// when includeHidden is set.
func (e *Engine) Tables(includeHidden bool) []models.Table {
	if includeHidden {
		return e.store.List()
	}
	return e.store.ListVisible()
}

func (e *Engine) Adjacent(id uint) ([]uint, error) {
	if _, ok := e.store.Get(id); !ok {
		return nil, fmt.Errorf("adjacent %d: %w", id, ErrTableNotFound)
	}
	return AdjacentTo(id, e.store.List(), e.geometry)
}

func (e *Engine) GroupCapacity(id uint) (int, error) {
	return e.store.GroupCapacity(id)
}

func (e *Engine) BeginDrag(id uint) error {
	return e.sync.BeginDrag(id)
}

func (e *Engine) MoveDrag(id uint, x, y float64) (models.Table, error) {
	return e.sync.MoveDrag(id, x, y)
}

// EndDrag finalizes a drop, or hands it to the merge machine when the table
// landed next to others.
func (e *Engine) EndDrag(id uint, x, y float64) (DropResult, error) {
	t, adjacent, err := e.sync.EndDrag(id, x, y)
	if err != nil {
		return DropResult{}, err
	}
	result := DropResult{Table: t, Adjacent: adjacent}
	if len(adjacent) == 0 {
		return result, nil
	}

	pending, err := e.merge.Propose(id, adjacent)
	if err != nil {
		// An unmerge started elsewhere while this table was in hand.
		if _, rbErr := e.sync.Rollback(id); rbErr != nil {
			e.log.WithField("table_id", id).WithError(rbErr).Error("rollback after refused proposal failed")
		}
		return DropResult{}, fmt.Errorf("end drag %d: %w", id, err)
	}
	result.Pending = &pending
	return result, nil
}

func (e *Engine) RollbackDrag(id uint) (models.Table, error) {
	return e.sync.Rollback(id)
}

func (e *Engine) ConfirmMerge(ctx context.Context) (MergeResult, error) {
	return e.merge.Confirm(ctx)
}

func (e *Engine) CancelMerge() (PendingState, error) {
	return e.merge.Cancel()
}

func (e *Engine) Unmerge(ctx context.Context, parentID uint) (UnmergeResult, error) {
	return e.merge.Unmerge(ctx, parentID)
}

// UpdateStatus applies a status change locally and forwards it to the table
// service. Status is independent of merge state.
func (e *Engine) UpdateStatus(ctx context.Context, id uint, status string) (models.Table, error) {
	t, err := e.store.Mutate(id, Patch{Status: &status})
	if err != nil {
		return models.Table{}, err
	}
	e.calls.run(ctx, OpUpdateStatus, []uint{id}, func(ctx context.Context) error {
		_, err := e.remote.UpdateStatus(ctx, id, status)
		return err
	})
	return t, nil
}

// AddTable places a newly created table on the floor.
func (e *Engine) AddTable(t models.Table) {
	e.store.Put(t)
	e.notifier.Notify(Event{Type: EventTableCreate, FloorID: e.floorID, Data: t})
}

// RemoveTable drops a table and, for a merge parent, its hidden children.
func (e *Engine) RemoveTable(id uint) []uint {
	removed := e.store.Remove(id)
	for _, rid := range removed {
		e.sync.Release(rid)
	}
	if len(removed) > 0 {
		e.notifier.Notify(Event{Type: EventTableDelete, FloorID: e.floorID, Data: map[string]interface{}{
			"table_ids": removed,
		}})
	}
	return removed
}

// Resync writes the table's current optimistic position to the service
// again. Used to retry after a failed write.
func (e *Engine) Resync(id uint) error {
	t, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("resync %d: %w", id, ErrTableNotFound)
	}
	if t.IsHidden {
		return nil
	}
	e.sync.Persist(id, positionOf(t))
	return nil
}

// Retry re-issues a failed table service call from the current local
// state. A call that fails again is reported through OnFailure as before.
func (e *Engine) Retry(ctx context.Context, op string, tableIDs []uint) error {
	if len(tableIDs) == 0 {
		return nil
	}
	switch op {
	case OpUpdatePosition:
		return e.Resync(tableIDs[0])
	case OpUpdateStatus:
		t, err := e.Table(tableIDs[0])
		if err != nil {
			return err
		}
		e.calls.run(ctx, OpUpdateStatus, []uint{t.ID}, func(ctx context.Context) error {
			_, err := e.remote.UpdateStatus(ctx, t.ID, t.Status)
			return err
		})
	case OpMergeTables:
		parent, err := e.Table(tableIDs[0])
		if err != nil {
			return err
		}
		// Unmerged locally since the failure; nothing left to push.
		if !parent.IsMerged {
			return nil
		}
		group := append([]uint{parent.ID}, parent.MergedTableIDs...)
		e.calls.run(ctx, OpMergeTables, group, func(ctx context.Context) error {
			_, err := e.remote.MergeTables(ctx, group)
			return err
		})
	case OpUnmergeTables:
		parent, err := e.Table(tableIDs[0])
		if err != nil {
			return err
		}
		if parent.IsMerged {
			return nil
		}
		e.calls.run(ctx, OpUnmergeTables, []uint{parent.ID}, func(ctx context.Context) error {
			return e.remote.UnmergeTables(ctx, parent.ID)
		})
	default:
		return fmt.Errorf("retry: unknown operation %q", op)
	}
	return nil
}

// Close flushes pending drag writes and waits for outstanding service calls.
func (e *Engine) Close() {
	e.sync.Close()
	e.merge.Close()
	e.calls.wait()
	e.sync.Wait()
}
