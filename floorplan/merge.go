package floorplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
)

// DefaultAnimationDuration is how long a merge or unmerge record stays active.
const DefaultAnimationDuration = 600 * time.Millisecond

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAdjacentPending  Phase = "adjacent_pending"
	PhaseConfirmed        Phase = "confirmed"
	PhaseCancelled        Phase = "cancelled"
	PhaseUnmergeAnimating Phase = "unmerge_animating"
)

// State is one variant of the merge machine state.
type State interface {
	Phase() Phase
}

type IdleState struct{}

func (IdleState) Phase() Phase { return PhaseIdle }

// PendingState holds a merge proposal awaiting the user's decision. Group
// lists the stationary tables first and the dragged table last; Group[0]
// becomes the parent on confirmation.
type PendingState struct {
	DraggedID uint   `json:"dragged_id"`
	Group     []uint `json:"group"`
}

func (PendingState) Phase() Phase { return PhaseAdjacentPending }

type UnmergeAnimatingState struct {
	ParentID uint   `json:"parent_id"`
	ChildIDs []uint `json:"child_ids"`
}

func (UnmergeAnimatingState) Phase() Phase { return PhaseUnmergeAnimating }

type AnimationKind string

const (
	AnimationMerging   AnimationKind = "MERGING"
	AnimationUnmerging AnimationKind = "UNMERGING"
)

// Animation is the ephemeral record a dashboard renders a merge or unmerge
// transition from. The layout is already in its final state while it runs.
type Animation struct {
	ID               string         `json:"id"`
	Kind             AnimationKind  `json:"kind"`
	SourceID         uint           `json:"source_id"`
	TargetID         uint           `json:"target_id"`
	InitialPositions map[uint]Point `json:"initial_positions"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
}

// Progress is the fraction of the animation elapsed at now, clamped to [0,1].
func (a Animation) Progress(now time.Time) float64 {
	if a.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(a.StartedAt)) / float64(a.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

type MergeResult struct {
	Parent     models.Table `json:"parent"`
	ChildIDs   []uint       `json:"child_ids"`
	Animations []Animation  `json:"animations"`
}

type UnmergeResult struct {
	Parent     models.Table   `json:"parent"`
	Children   []models.Table `json:"children"`
	Animations []Animation    `json:"animations"`
}

type animationEntry struct {
	Animation
	timer *time.Timer
}

// MergeMachine drives the merge proposal lifecycle
// (idle → adjacent_pending → confirmed|cancelled → idle) and the unmerge
// lifecycle (idle → unmerge_animating → idle).
type MergeMachine struct {
	floorID  uint
	store    *Store
	sync     *SyncManager
	remote   TableService
	notifier Notifier
	calls    *dispatcher
	duration time.Duration
	now      func() time.Time
	log      logrus.FieldLogger

	mu         sync.Mutex
	state      State
	animations map[string]*animationEntry
}

func NewMergeMachine(store *Store, syncer *SyncManager, remote TableService, notifier Notifier, calls *dispatcher, duration time.Duration, log logrus.FieldLogger) *MergeMachine {
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MergeMachine{
		floorID:    store.FloorID(),
		store:      store,
		sync:       syncer,
		remote:     remote,
		notifier:   notifier,
		calls:      calls,
		duration:   duration,
		now:        time.Now,
		log:        log,
		state:      IdleState{},
		animations: make(map[string]*animationEntry),
	}
}

func (m *MergeMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Animating reports whether any merge or unmerge record is active.
func (m *MergeMachine) Animating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.animations) > 0
}

// DragAllowed is the gate the sync manager checks before a new drag.
func (m *MergeMachine) DragAllowed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.animations) > 0 {
		return ErrTransitionAnimating
	}
	if _, ok := m.state.(PendingState); ok {
		return ErrMergePending
	}
	return nil
}

func (m *MergeMachine) Animations() []Animation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Animation, 0, len(m.animations))
	for _, e := range m.animations {
		out = append(out, e.Animation)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Propose opens a merge proposal for a drop next to adjacent. Every
// adjacent table joins the same group, so one drop touching several tables
// proposes a single N-way merge.
func (m *MergeMachine) Propose(draggedID uint, adjacent []uint) (PendingState, error) {
	m.mu.Lock()
	if err := m.idleLocked(); err != nil {
		m.mu.Unlock()
		return PendingState{}, err
	}
	group := make([]uint, 0, len(adjacent)+1)
	group = append(group, adjacent...)
	group = append(group, draggedID)
	pending := PendingState{DraggedID: draggedID, Group: group}
	m.state = pending
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"floor_id": m.floorID, "group": group}).Info("merge proposed")
	m.notifier.Notify(Event{Type: EventMergeProposed, FloorID: m.floorID, Data: pending})
	return pending, nil
}

// Confirm commits the pending proposal. The first group member survives as
// the parent and the rest are hidden inside it with their pre-drag
// positions as originals. The merge is the logical truth as soon as the
// store is updated; the MERGING records only trail it for the UI. A group
// smaller than two is dropped silently and a zero MergeResult returned.
func (m *MergeMachine) Confirm(ctx context.Context) (MergeResult, error) {
	m.mu.Lock()
	pending, ok := m.state.(PendingState)
	if !ok {
		m.mu.Unlock()
		return MergeResult{}, ErrNoPendingMerge
	}
	if len(pending.Group) < 2 {
		m.state = IdleState{}
		m.mu.Unlock()
		m.log.WithField("group", pending.Group).Debug(ErrInvalidMergeCandidate.Error())
		return MergeResult{}, nil
	}

	parentID := pending.Group[0]
	childIDs := append([]uint(nil), pending.Group[1:]...)

	dropped := make(map[uint]Point, len(pending.Group))
	originals := make(map[uint]Point, len(childIDs))
	for _, id := range pending.Group {
		if t, ok := m.store.Get(id); ok {
			dropped[id] = positionOf(t)
		}
	}
	for _, id := range childIDs {
		if p, ok := m.sync.Snapshot(id); ok {
			originals[id] = p
		}
	}

	parent, err := m.store.MergeInto(parentID, childIDs, originals)
	if err != nil {
		m.mu.Unlock()
		return MergeResult{}, fmt.Errorf("confirm merge: %w", err)
	}
	for _, id := range pending.Group {
		m.sync.Release(id)
	}
	// The service keeps each child's stored position as its original, so the
	// pre-drag snapshot must land there before the merge call.
	for _, id := range childIDs {
		if p, ok := originals[id]; ok {
			m.sync.Persist(id, p)
		}
	}

	started := m.now()
	anims := make([]Animation, 0, len(childIDs))
	for _, childID := range childIDs {
		anims = append(anims, Animation{
			ID:       uuid.NewString(),
			Kind:     AnimationMerging,
			SourceID: childID,
			TargetID: parentID,
			InitialPositions: map[uint]Point{
				childID:  dropped[childID],
				parentID: dropped[parentID],
			},
			StartedAt: started,
			Duration:  m.duration,
		})
	}
	m.state = IdleState{}
	m.startAnimationsLocked(anims)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"floor_id": m.floorID, "parent_id": parentID, "child_ids": childIDs}).Info("merge confirmed")
	result := MergeResult{Parent: parent, ChildIDs: childIDs, Animations: anims}
	m.notifier.Notify(Event{Type: EventMergeConfirmed, FloorID: m.floorID, Data: result})
	m.notifier.Notify(Event{Type: EventAnimationStarted, FloorID: m.floorID, Data: anims})

	group := append([]uint(nil), pending.Group...)
	m.calls.run(ctx, OpMergeTables, group, func(ctx context.Context) error {
		m.sync.Settle(group)
		authoritative, err := m.remote.MergeTables(ctx, group)
		if err != nil {
			return err
		}
		if authoritative.ID != parentID {
			m.log.WithFields(logrus.Fields{"local_parent": parentID, "remote_parent": authoritative.ID}).
				Warn("table service picked a different merge parent")
		}
		return nil
	})
	return result, nil
}

// Cancel rejects the pending proposal and rolls every member back to where
// it was before the drag. Members that were never dragged stay put.
func (m *MergeMachine) Cancel() (PendingState, error) {
	m.mu.Lock()
	pending, ok := m.state.(PendingState)
	if !ok {
		m.mu.Unlock()
		return PendingState{}, ErrNoPendingMerge
	}
	m.state = IdleState{}
	m.mu.Unlock()

	for _, id := range pending.Group {
		if _, err := m.sync.Rollback(id); err != nil && !errors.Is(err, ErrNoSnapshot) {
			m.log.WithField("table_id", id).WithError(err).Error("rollback after cancelled merge failed")
		}
	}

	m.log.WithFields(logrus.Fields{"floor_id": m.floorID, "group": pending.Group}).Info("merge cancelled")
	m.notifier.Notify(Event{Type: EventMergeCancelled, FloorID: m.floorID, Data: pending})
	return pending, nil
}

// Unmerge splits a merge parent back into its tables, each restored to its
// recorded original position.
func (m *MergeMachine) Unmerge(ctx context.Context, parentID uint) (UnmergeResult, error) {
	m.mu.Lock()
	if err := m.idleLocked(); err != nil {
		m.mu.Unlock()
		return UnmergeResult{}, err
	}
	before, ok := m.store.Get(parentID)
	if !ok {
		m.mu.Unlock()
		return UnmergeResult{}, fmt.Errorf("unmerge %d: %w", parentID, ErrTableNotFound)
	}
	if !before.IsMerged {
		m.mu.Unlock()
		return UnmergeResult{}, fmt.Errorf("unmerge %d: %w", parentID, ErrNotMerged)
	}

	children, err := m.store.Unmerge(parentID)
	if err != nil {
		m.mu.Unlock()
		return UnmergeResult{}, err
	}
	parent, _ := m.store.Get(parentID)

	started := m.now()
	anims := make([]Animation, 0, len(children))
	childIDs := make([]uint, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
		anims = append(anims, Animation{
			ID:       uuid.NewString(),
			Kind:     AnimationUnmerging,
			SourceID: parentID,
			TargetID: child.ID,
			InitialPositions: map[uint]Point{
				child.ID: positionOf(parent),
				parentID: positionOf(parent),
			},
			StartedAt: started,
			Duration:  m.duration,
		})
	}
	if len(anims) > 0 {
		m.state = UnmergeAnimatingState{ParentID: parentID, ChildIDs: childIDs}
		m.startAnimationsLocked(anims)
	}
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"floor_id": m.floorID, "parent_id": parentID, "child_ids": childIDs}).Info("tables unmerged")
	result := UnmergeResult{Parent: parent, Children: children, Animations: anims}
	m.notifier.Notify(Event{Type: EventTablesUnmerged, FloorID: m.floorID, Data: result})
	if len(anims) > 0 {
		m.notifier.Notify(Event{Type: EventAnimationStarted, FloorID: m.floorID, Data: anims})
	}

	// The service restores children from its own copy of the merge; the
	// follow-up writes bring it in line with the pre-drag originals kept here.
	m.calls.run(ctx, OpUnmergeTables, []uint{parentID}, func(ctx context.Context) error {
		if err := m.remote.UnmergeTables(ctx, parentID); err != nil {
			return err
		}
		for _, child := range children {
			m.sync.Persist(child.ID, positionOf(child))
		}
		return nil
	})
	return result, nil
}

// Close stops all animation timers and returns the machine to idle.
func (m *MergeMachine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.animations {
		e.timer.Stop()
		delete(m.animations, id)
	}
	m.state = IdleState{}
}

func (m *MergeMachine) idleLocked() error {
	switch m.state.(type) {
	case PendingState:
		return ErrMergePending
	case UnmergeAnimatingState:
		return ErrTransitionAnimating
	}
	if len(m.animations) > 0 {
		return ErrTransitionAnimating
	}
	return nil
}

func (m *MergeMachine) startAnimationsLocked(anims []Animation) {
	for _, a := range anims {
		id := a.ID
		e := &animationEntry{Animation: a}
		e.timer = time.AfterFunc(a.Duration, func() { m.finishAnimation(id) })
		m.animations[id] = e
	}
}

func (m *MergeMachine) finishAnimation(id string) {
	m.mu.Lock()
	e, ok := m.animations[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.animations, id)
	if len(m.animations) == 0 {
		if _, unmerging := m.state.(UnmergeAnimatingState); unmerging {
			m.state = IdleState{}
		}
	}
	m.mu.Unlock()

	m.notifier.Notify(Event{Type: EventAnimationFinished, FloorID: m.floorID, Data: e.Animation})
}
