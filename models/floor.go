package models

import "time"

type Floor struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	SortOrder    int       `gorm:"not null;default:0" json:"sort_order"`
	Tables       []Table   `gorm:"foreignKey:FloorID" json:"tables,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}
