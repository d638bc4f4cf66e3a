package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

var (
	ErrFloorNotFound  = errors.New("floor not found")
	ErrFloorNotActive = errors.New("floor is not active")
)

// FloorService menyimpan satu engine untuk setiap floor yang sedang dibuka
// di dashboard. Engine dibuat dari isi database saat floor diaktifkan.
type FloorService struct {
	repo *TableRepository
	opts floorplan.Options

	mutex   sync.Mutex
	engines map[uint]*floorplan.Engine
}

func NewFloorService(repo *TableRepository, opts floorplan.Options) *FloorService {
	return &FloorService{
		repo:    repo,
		opts:    opts,
		engines: make(map[uint]*floorplan.Engine),
	}
}

func (fs *FloorService) Repository() *TableRepository {
	return fs.repo
}

// Activate memuat meja sebuah floor dan membuat engine-nya. Floor yang
// sudah aktif mengembalikan engine yang sama.
func (fs *FloorService) Activate(ctx context.Context, floorID uint) (*floorplan.Engine, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	if e, ok := fs.engines[floorID]; ok {
		return e, nil
	}

	floor, err := fs.repo.GetFloor(ctx, floorID)
	if err != nil {
		return nil, err
	}
	tables, err := fs.repo.ListTables(ctx, floor.RestaurantID, &floor.ID)
	if err != nil {
		return nil, fmt.Errorf("load tables of floor %d: %w", floorID, err)
	}

	e := floorplan.NewEngine(floor.ID, tables, fs.repo, fs.opts)
	fs.engines[floorID] = e
	utils.InfoLogger.Printf("Floor %d (%s) activated with %d tables", floor.ID, floor.Name, len(tables))
	return e, nil
}

// Engine -> engine floor yang sudah aktif
func (fs *FloorService) Engine(floorID uint) (*floorplan.Engine, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	e, ok := fs.engines[floorID]
	if !ok {
		return nil, fmt.Errorf("floor %d: %w", floorID, ErrFloorNotActive)
	}
	return e, nil
}

// ActiveFloors -> id floor yang engine-nya sedang berjalan
func (fs *FloorService) ActiveFloors() []uint {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	ids := make([]uint, 0, len(fs.engines))
	for id := range fs.engines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Deactivate menutup engine floor setelah semua penulisan posisi selesai
func (fs *FloorService) Deactivate(floorID uint) {
	fs.mutex.Lock()
	e, ok := fs.engines[floorID]
	delete(fs.engines, floorID)
	fs.mutex.Unlock()

	if ok {
		e.Close()
		utils.InfoLogger.Printf("Floor %d deactivated", floorID)
	}
}

// Retry -> mengulang pemanggilan table service yang gagal lewat engine floor
func (fs *FloorService) Retry(ctx context.Context, floorID uint, op string, tableIDs []uint) error {
	e, err := fs.Engine(floorID)
	if err != nil {
		return err
	}
	return e.Retry(ctx, op, tableIDs)
}

// CreateTable menyimpan meja baru lalu menaruhnya di denah jika floor aktif
func (fs *FloorService) CreateTable(ctx context.Context, table *models.Table) error {
	if err := fs.repo.CreateTable(ctx, table); err != nil {
		return err
	}
	if e, err := fs.Engine(table.FloorID); err == nil {
		e.AddTable(*table)
	}
	utils.InfoLogger.Printf("New table created: %s on floor %d", table.TableNumber, table.FloorID)
	return nil
}

// DeleteTable menghapus meja beserta anak merge-nya dari database dan denah
func (fs *FloorService) DeleteTable(ctx context.Context, floorID, tableID uint) ([]uint, error) {
	table, err := fs.repo.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if table.FloorID != floorID {
		return nil, fmt.Errorf("table %d on floor %d: %w", tableID, floorID, floorplan.ErrTableNotFound)
	}

	removed, err := fs.repo.DeleteTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if e, err := fs.Engine(floorID); err == nil {
		e.RemoveTable(tableID)
	}
	utils.InfoLogger.Printf("Tables %v deleted from floor %d", removed, floorID)
	return removed, nil
}

// Close menutup semua engine yang aktif
func (fs *FloorService) Close() {
	for _, id := range fs.ActiveFloors() {
		fs.Deactivate(id)
	}
}
