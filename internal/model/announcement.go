package model

import (
	"time"

	"gorm.io/gorm"
)

// Announcement is a notice posted by an admin. A nil RTUnitID marks a global
// announcement visible and editable by any authorized admin (shared-resource
// exception).
type Announcement struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Title     string         `json:"title" gorm:"type:varchar(200);not null"`
	Body      string         `json:"body" gorm:"type:text"`
	AuthorID  uint           `json:"author_id" gorm:"index;not null"`
	RTUnitID  *uint          `json:"rt_unit_id,omitempty" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
