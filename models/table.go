package models

import "time"

// Table status
const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
)

type Table struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RestaurantID   uint      `gorm:"not null;index" json:"restaurant_id"`
	FloorID        uint      `gorm:"not null;index" json:"floor_id"`
	TableNumber    string    `gorm:"type:varchar(50);not null" json:"table_number"`
	X              float64   `gorm:"not null;default:0" json:"x"`
	Y              float64   `gorm:"not null;default:0" json:"y"`
	Capacity       int       `gorm:"not null;default:2" json:"capacity"`
	Status         string    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	IsMerged       bool      `gorm:"not null;default:false" json:"is_merged"`
	MergedTableIDs []uint    `gorm:"type:text;serializer:json" json:"merged_table_ids"`
	ParentTableID  *uint     `gorm:"index" json:"parent_table_id"`
	IsHidden       bool      `gorm:"not null;default:false" json:"is_hidden"`
	OriginalX      float64   `json:"original_x"`
	OriginalY      float64   `json:"original_y"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// IsFree reports whether the table is neither a merge parent nor a hidden child.
func (t Table) IsFree() bool {
	return !t.IsMerged && t.ParentTableID == nil && !t.IsHidden
}

// IsValidTableStatus checks the status against the known table statuses.
func IsValidTableStatus(status string) bool {
	switch status {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved:
		return true
	}
	return false
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Table) Clone() Table {
	c := t
	if t.MergedTableIDs != nil {
		c.MergedTableIDs = append([]uint(nil), t.MergedTableIDs...)
	}
	if t.ParentTableID != nil {
		parent := *t.ParentTableID
		c.ParentTableID = &parent
	}
	return c
}
