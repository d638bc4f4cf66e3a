package floorplan

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
)

const (
	testDebounce  = 20 * time.Millisecond
	testAnimation = 40 * time.Millisecond
	waitFor       = 2 * time.Second
	tick          = 5 * time.Millisecond
)

type positionCall struct {
	TableID uint
	X, Y    float64
}

// fakeService records every call made to the table service.
type fakeService struct {
	mu          sync.Mutex
	positions   []positionCall
	statuses    map[uint]string
	merges      [][]uint
	unmerges    []uint
	order       []string
	positionErr error
	mergeErr    error
	unmergeErr  error

	// When set, UpdatePosition blocks until the channel is closed.
	release     chan struct{}
	inflight    map[uint]int
	maxInflight int
}

func newFakeService() *fakeService {
	return &fakeService{
		statuses: make(map[uint]string),
		inflight: make(map[uint]int),
	}
}

func (f *fakeService) UpdatePosition(ctx context.Context, tableID uint, x, y float64) (models.Table, error) {
	f.mu.Lock()
	f.inflight[tableID]++
	if f.inflight[tableID] > f.maxInflight {
		f.maxInflight = f.inflight[tableID]
	}
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight[tableID]--
	f.positions = append(f.positions, positionCall{TableID: tableID, X: x, Y: y})
	f.order = append(f.order, fmt.Sprintf("position %d (%g,%g)", tableID, x, y))
	if f.positionErr != nil {
		return models.Table{}, f.positionErr
	}
	return models.Table{ID: tableID, X: x, Y: y}, nil
}

func (f *fakeService) UpdateStatus(ctx context.Context, tableID uint, status string) (models.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[tableID] = status
	return models.Table{ID: tableID, Status: status}, nil
}

func (f *fakeService) MergeTables(ctx context.Context, tableIDs []uint) (models.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, append([]uint(nil), tableIDs...))
	f.order = append(f.order, fmt.Sprintf("merge %v", tableIDs))
	if f.mergeErr != nil {
		return models.Table{}, f.mergeErr
	}
	return models.Table{ID: tableIDs[0], IsMerged: true, MergedTableIDs: tableIDs[1:]}, nil
}

func (f *fakeService) UnmergeTables(ctx context.Context, parentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmerges = append(f.unmerges, parentID)
	return f.unmergeErr
}

func (f *fakeService) ListTables(ctx context.Context, restaurantID uint, floorID *uint) ([]models.Table, error) {
	return nil, nil
}

func (f *fakeService) positionCalls() []positionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]positionCall(nil), f.positions...)
}

// callOrder lists position and merge calls in the order they arrived.
func (f *fakeService) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeService) mergeCalls() [][]uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]uint(nil), f.merges...)
}

func (f *fakeService) unmergeCalls() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.unmerges...)
}

func (f *fakeService) statusOf(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

// eventRecorder collects engine events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func table(id uint, x, y float64) models.Table {
	return models.Table{
		ID:          id,
		FloorID:     1,
		TableNumber: "T",
		X:           x,
		Y:           y,
		Capacity:    4,
		Status:      models.TableStatusAvailable,
	}
}

func newTestEngine(t *testing.T, svc *fakeService, opts Options, tables ...models.Table) *Engine {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = testDebounce
	}
	if opts.AnimationDuration == 0 {
		opts.AnimationDuration = testAnimation
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	e := NewEngine(1, tables, svc, opts)
	t.Cleanup(e.Close)
	return e
}
