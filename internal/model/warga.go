package model

import (
	"time"

	"gorm.io/gorm"
)

// Warga represents a registered household member of one RT unit.
// NomorKK is unique within a unit; the count of active warga per unit is
// capped by the unit's KuotaKK at registration time.
type Warga struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RTUnitID  uint           `json:"rt_unit_id" gorm:"index;not null;uniqueIndex:idx_warga_unit_kk"`
	NomorKK   string         `json:"nomor_kk" gorm:"type:varchar(30);not null;uniqueIndex:idx_warga_unit_kk"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Phone     string         `json:"phone" gorm:"type:varchar(20);index"`
	Address   string         `json:"address" gorm:"type:text"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	RTUnit *RTUnit `json:"rt_unit,omitempty" gorm:"foreignKey:RTUnitID"`
}
