package model

import (
	"time"

	"gorm.io/gorm"
)

// RTUnit represents one RT (Rukun Tetangga) administrative unit.
// Units are only ever deactivated, never hard-deleted.
type RTUnit struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Address   string         `json:"address" gorm:"type:text"`
	KuotaKK   int            `json:"kuota_kk" gorm:"not null;default:0"` // max active households
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
