package floorplan

import (
	"context"

	"github.com/yeremiapane/restaurant-floor/models"
)

// TableService is the remote table/floor persistence service the engine
// reconciles with.
type TableService interface {
	UpdatePosition(ctx context.Context, tableID uint, x, y float64) (models.Table, error)
	UpdateStatus(ctx context.Context, tableID uint, status string) (models.Table, error)
	// MergeTables absorbs tableIDs[1:] into tableIDs[0] and returns the
	// parent the service settled on.
	MergeTables(ctx context.Context, tableIDs []uint) (models.Table, error)
	UnmergeTables(ctx context.Context, parentID uint) error
	ListTables(ctx context.Context, restaurantID uint, floorID *uint) ([]models.Table, error)
}

// Floor events
const (
	EventMergeProposed     = "merge_proposed"
	EventMergeConfirmed    = "merge_confirmed"
	EventMergeCancelled    = "merge_cancelled"
	EventTablesUnmerged    = "tables_unmerged"
	EventAnimationStarted  = "animation_started"
	EventAnimationFinished = "animation_finished"
	EventTableUpdate       = "table_update"
	EventTableCreate       = "table_create"
	EventTableDelete       = "table_delete"
	EventSyncFailed        = "sync_failed"
)

type Event struct {
	Type    string      `json:"type"`
	FloorID uint        `json:"floor_id"`
	Data    interface{} `json:"data"`
}

// Notifier receives engine events, typically to fan them out to dashboards.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
