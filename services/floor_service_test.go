package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func testOptions() floorplan.Options {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return floorplan.Options{
		Debounce:          20 * time.Millisecond,
		AnimationDuration: 30 * time.Millisecond,
		Logger:            log,
	}
}

func setupFloorService(t *testing.T, opts floorplan.Options, tables ...models.Table) (*FloorService, *gorm.DB, models.Floor) {
	t.Helper()
	db := setupTestDB(t)
	floor := seedFloor(t, db, tables...)
	fs := NewFloorService(NewTableRepository(db), opts)
	t.Cleanup(fs.Close)
	return fs, db, floor
}

func TestFloorService_ActivateLoadsFloor(t *testing.T) {
	fs, _, floor := setupFloorService(t, testOptions(),
		models.Table{TableNumber: "A1", X: 10, Y: 10},
		models.Table{TableNumber: "A2", X: 300, Y: 10},
	)
	ctx := context.Background()

	_, err := fs.Engine(floor.ID)
	assert.True(t, errors.Is(err, ErrFloorNotActive))

	e, err := fs.Activate(ctx, floor.ID)
	require.NoError(t, err)
	assert.Len(t, e.Tables(false), 2)

	again, err := fs.Activate(ctx, floor.ID)
	require.NoError(t, err)
	assert.Same(t, e, again)
	assert.Equal(t, []uint{floor.ID}, fs.ActiveFloors())

	_, err = fs.Activate(ctx, 404)
	assert.True(t, errors.Is(err, ErrFloorNotFound))

	fs.Deactivate(floor.ID)
	assert.Empty(t, fs.ActiveFloors())
	err = fs.Retry(ctx, floor.ID, floorplan.OpUpdatePosition, []uint{1})
	assert.True(t, errors.Is(err, ErrFloorNotActive))
}

func TestFloorService_DragAndMergeReachDatabase(t *testing.T) {
	fs, db, floor := setupFloorService(t, testOptions(),
		models.Table{ID: 1, TableNumber: "A1", X: 400, Y: 400},
		models.Table{ID: 2, TableNumber: "B1", X: 160, Y: 100},
		models.Table{ID: 3, TableNumber: "C1", X: 700, Y: 100},
	)
	ctx := context.Background()
	e, err := fs.Activate(ctx, floor.ID)
	require.NoError(t, err)

	// Plain move lands in the database after the drop.
	require.NoError(t, e.BeginDrag(3))
	_, err = e.EndDrag(3, 650, 300)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		var t3 models.Table
		db.First(&t3, 3)
		return t3.X == 650 && t3.Y == 300
	}, waitFor, tick)

	// Merge: the dragged table's stored position is still its pre-drag one.
	require.NoError(t, e.BeginDrag(1))
	drop, err := e.EndDrag(1, 100, 100)
	require.NoError(t, err)
	require.NotNil(t, drop.Pending)
	_, err = e.ConfirmMerge(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var parent models.Table
		db.First(&parent, 2)
		return parent.IsMerged
	}, waitFor, tick)
	child := reload(t, db, 1)
	assert.True(t, child.IsHidden)
	assert.Equal(t, 400.0, child.OriginalX)

	require.Eventually(t, func() bool { return !e.Merge().Animating() }, waitFor, tick)
	_, err = e.Unmerge(ctx, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var c models.Table
		db.First(&c, 1)
		return !c.IsHidden && c.X == 400 && c.Y == 400
	}, waitFor, tick)
}

func TestFloorService_UnmergeAfterReloadUsesPreDragPosition(t *testing.T) {
	fs, db, floor := setupFloorService(t, testOptions(),
		models.Table{ID: 1, TableNumber: "A1", X: 400, Y: 400},
		models.Table{ID: 2, TableNumber: "B1", X: 160, Y: 100},
	)
	ctx := context.Background()
	e, err := fs.Activate(ctx, floor.ID)
	require.NoError(t, err)

	// Jeda di tengah drag: posisi sementara sempat tersimpan
	require.NoError(t, e.BeginDrag(1))
	_, err = e.MoveDrag(1, 250, 250)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		c := reload(t, db, 1)
		return c.X == 250 && c.Y == 250
	}, waitFor, tick)

	_, err = e.EndDrag(1, 100, 100)
	require.NoError(t, err)
	_, err = e.ConfirmMerge(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return reload(t, db, 2).IsMerged }, waitFor, tick)

	child := reload(t, db, 1)
	assert.True(t, child.IsHidden)
	assert.Equal(t, 400.0, child.OriginalX)
	assert.Equal(t, 400.0, child.OriginalY)

	// Floor ditutup lalu dibuka lagi dari database
	fs.Deactivate(floor.ID)
	e, err = fs.Activate(ctx, floor.ID)
	require.NoError(t, err)

	split, err := e.Unmerge(ctx, 2)
	require.NoError(t, err)
	require.Len(t, split.Children, 1)
	assert.Equal(t, 400.0, split.Children[0].X)
	assert.Equal(t, 400.0, split.Children[0].Y)

	require.Eventually(t, func() bool {
		c := reload(t, db, 1)
		return !c.IsHidden && c.X == 400 && c.Y == 400
	}, waitFor, tick)
}

func TestFloorService_CreateAndDeleteTable(t *testing.T) {
	rec := &recorder{}
	opts := testOptions()
	opts.Notifier = rec
	fs, _, floor := setupFloorService(t, opts, models.Table{TableNumber: "A1"})
	ctx := context.Background()

	e, err := fs.Activate(ctx, floor.ID)
	require.NoError(t, err)

	table := models.Table{FloorID: floor.ID, TableNumber: "A2", Capacity: 2, X: 500, Y: 500}
	require.NoError(t, fs.CreateTable(ctx, &table))
	assert.Len(t, e.Tables(false), 2)
	assert.Contains(t, rec.types(), floorplan.EventTableCreate)

	_, err = fs.DeleteTable(ctx, floor.ID+1, table.ID)
	assert.True(t, errors.Is(err, floorplan.ErrTableNotFound))

	removed, err := fs.DeleteTable(ctx, floor.ID, table.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{table.ID}, removed)
	assert.Len(t, e.Tables(false), 1)
	assert.Contains(t, rec.types(), floorplan.EventTableDelete)
}
