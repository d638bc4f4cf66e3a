package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

// TableRepository adalah implementasi floorplan.TableService di atas gorm.
// Selain itu juga menyediakan CRUD floor dan meja untuk controller.
type TableRepository struct {
	db *gorm.DB
}

func NewTableRepository(db *gorm.DB) *TableRepository {
	return &TableRepository{db: db}
}

var _ floorplan.TableService = (*TableRepository)(nil)

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("table %d: %w", id, floorplan.ErrTableNotFound)
	}
	return err
}

// GetTable -> detail satu meja
func (r *TableRepository) GetTable(ctx context.Context, tableID uint) (models.Table, error) {
	var table models.Table
	if err := r.db.WithContext(ctx).First(&table, tableID).Error; err != nil {
		return models.Table{}, notFound(err, tableID)
	}
	return table, nil
}

// UpdatePosition menyimpan posisi meja di denah
func (r *TableRepository) UpdatePosition(ctx context.Context, tableID uint, x, y float64) (models.Table, error) {
	table, err := r.GetTable(ctx, tableID)
	if err != nil {
		return models.Table{}, err
	}
	if err := r.db.WithContext(ctx).Model(&table).Updates(map[string]interface{}{"x": x, "y": y}).Error; err != nil {
		return models.Table{}, err
	}
	table.X, table.Y = x, y
	return table, nil
}

// UpdateStatus -> update status meja
func (r *TableRepository) UpdateStatus(ctx context.Context, tableID uint, status string) (models.Table, error) {
	if !models.IsValidTableStatus(status) {
		return models.Table{}, fmt.Errorf("%w: %q", floorplan.ErrInvalidStatus, status)
	}
	table, err := r.GetTable(ctx, tableID)
	if err != nil {
		return models.Table{}, err
	}
	if err := r.db.WithContext(ctx).Model(&table).Update("status", status).Error; err != nil {
		return models.Table{}, err
	}
	table.Status = status
	return table, nil
}

// MergeTables menggabungkan tableIDs[1:] ke dalam tableIDs[0]. Posisi
// tersimpan setiap anak menjadi posisi asal saat unmerge.
func (r *TableRepository) MergeTables(ctx context.Context, tableIDs []uint) (models.Table, error) {
	if len(tableIDs) < 2 {
		return models.Table{}, floorplan.ErrInvalidMergeCandidate
	}
	parentID := tableIDs[0]
	childIDs := tableIDs[1:]

	var parent models.Table
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&parent, parentID).Error; err != nil {
			return notFound(err, parentID)
		}
		if parent.IsHidden || parent.ParentTableID != nil {
			return fmt.Errorf("merge into %d: %w", parentID, floorplan.ErrNestedMerge)
		}

		var children []models.Table
		if err := tx.Where("id IN ?", childIDs).Find(&children).Error; err != nil {
			return err
		}
		if len(children) != len(childIDs) {
			return fmt.Errorf("merge into %d: %w", parentID, floorplan.ErrTableNotFound)
		}

		for _, child := range children {
			if child.ID == parentID {
				return floorplan.ErrInvalidMergeCandidate
			}
			if child.IsHidden || child.IsMerged {
				return fmt.Errorf("merge child %d: %w", child.ID, floorplan.ErrNestedMerge)
			}
			if child.FloorID != parent.FloorID {
				return fmt.Errorf("merge child %d is on another floor: %w", child.ID, floorplan.ErrInvalidMergeCandidate)
			}
			err := tx.Model(&models.Table{}).Where("id = ?", child.ID).Updates(map[string]interface{}{
				"is_hidden":       true,
				"parent_table_id": parentID,
				"original_x":      child.X,
				"original_y":      child.Y,
			}).Error
			if err != nil {
				return err
			}
		}

		parent.IsMerged = true
		parent.MergedTableIDs = append(parent.MergedTableIDs, childIDs...)
		return tx.Save(&parent).Error
	})
	if err != nil {
		return models.Table{}, err
	}

	utils.InfoLogger.Printf("Tables %v merged into table %d", childIDs, parentID)
	return parent, nil
}

// UnmergeTables mengembalikan semua anak ke posisi asalnya
func (r *TableRepository) UnmergeTables(ctx context.Context, parentID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Table
		if err := tx.First(&parent, parentID).Error; err != nil {
			return notFound(err, parentID)
		}
		if !parent.IsMerged {
			return fmt.Errorf("unmerge %d: %w", parentID, floorplan.ErrNotMerged)
		}

		var children []models.Table
		if err := tx.Where("parent_table_id = ?", parentID).Find(&children).Error; err != nil {
			return err
		}
		for _, child := range children {
			err := tx.Model(&models.Table{}).Where("id = ?", child.ID).Updates(map[string]interface{}{
				"is_hidden":       false,
				"parent_table_id": nil,
				"x":               child.OriginalX,
				"y":               child.OriginalY,
			}).Error
			if err != nil {
				return err
			}
		}

		parent.IsMerged = false
		parent.MergedTableIDs = nil
		return tx.Save(&parent).Error
	})
	if err != nil {
		return err
	}

	utils.InfoLogger.Printf("Table %d unmerged", parentID)
	return nil
}

// ListTables -> seluruh meja restoran, opsional dibatasi satu floor
func (r *TableRepository) ListTables(ctx context.Context, restaurantID uint, floorID *uint) ([]models.Table, error) {
	query := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if floorID != nil {
		query = query.Where("floor_id = ?", *floorID)
	}
	var tables []models.Table
	if err := query.Order("id").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// CreateTable -> menambahkan meja baru ke sebuah floor
func (r *TableRepository) CreateTable(ctx context.Context, table *models.Table) error {
	if table.Status == "" {
		table.Status = models.TableStatusAvailable
	}
	if !models.IsValidTableStatus(table.Status) {
		return fmt.Errorf("%w: %q", floorplan.ErrInvalidStatus, table.Status)
	}
	if table.Capacity <= 0 {
		return fmt.Errorf("table capacity must be positive, got %d", table.Capacity)
	}

	floor, err := r.GetFloor(ctx, table.FloorID)
	if err != nil {
		return err
	}
	table.RestaurantID = floor.RestaurantID
	table.IsMerged = false
	table.IsHidden = false
	table.ParentTableID = nil
	table.MergedTableIDs = nil

	return r.db.WithContext(ctx).Create(table).Error
}

// DeleteTable menghapus meja. Menghapus meja induk ikut menghapus anak yang
// tersembunyi di dalamnya. ID yang terhapus dikembalikan.
func (r *TableRepository) DeleteTable(ctx context.Context, tableID uint) ([]uint, error) {
	var removed []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			return notFound(err, tableID)
		}
		if table.IsHidden {
			return fmt.Errorf("delete %d: %w", tableID, floorplan.ErrTableHidden)
		}

		removed = []uint{table.ID}
		if table.IsMerged {
			var children []models.Table
			if err := tx.Where("parent_table_id = ?", table.ID).Find(&children).Error; err != nil {
				return err
			}
			for _, child := range children {
				removed = append(removed, child.ID)
			}
		}
		return tx.Delete(&models.Table{}, removed).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListFloors -> daftar floor sebuah restoran
func (r *TableRepository) ListFloors(ctx context.Context, restaurantID uint) ([]models.Floor, error) {
	var floors []models.Floor
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("sort_order, id").
		Find(&floors).Error
	if err != nil {
		return nil, err
	}
	return floors, nil
}

func (r *TableRepository) GetFloor(ctx context.Context, floorID uint) (models.Floor, error) {
	var floor models.Floor
	if err := r.db.WithContext(ctx).First(&floor, floorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Floor{}, fmt.Errorf("floor %d: %w", floorID, ErrFloorNotFound)
		}
		return models.Floor{}, err
	}
	return floor, nil
}

func (r *TableRepository) CreateFloor(ctx context.Context, floor *models.Floor) error {
	return r.db.WithContext(ctx).Create(floor).Error
}
