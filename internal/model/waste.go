package model

import (
	"time"

	"gorm.io/gorm"
)

// WasteType is a depositable waste category with its rupiah and point rates
// per kilogram.
type WasteType struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	PricePerKg  int64          `json:"price_per_kg" gorm:"not null"`
	PointsPerKg int64          `json:"points_per_kg" gorm:"not null"`
	Active      bool           `json:"active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// WasteDeposit is one immutable ledger entry. Rows are appended once and
// never updated. RTUnitID records the unit of the admin who processed the
// deposit, which for a super admin acting cross-unit is not necessarily the
// warga's unit.
type WasteDeposit struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	WargaID     uint      `json:"warga_id" gorm:"index;not null"`
	WasteTypeID uint      `json:"waste_type_id" gorm:"index;not null"`
	WeightKg    float64   `json:"weight_kg" gorm:"not null"`
	Amount      int64     `json:"amount" gorm:"not null"`
	Points      int64     `json:"points" gorm:"not null"`
	ProcessedBy uint      `json:"processed_by" gorm:"index;not null"`
	RTUnitID    *uint     `json:"rt_unit_id,omitempty" gorm:"index"`
	RequestID   *string   `json:"request_id,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt   time.Time `json:"created_at"`

	Warga     *Warga     `json:"warga,omitempty" gorm:"foreignKey:WargaID"`
	WasteType *WasteType `json:"waste_type,omitempty" gorm:"foreignKey:WasteTypeID"`
}

// WasteBalance holds one running-total row per warga. Totals are only ever
// changed by store-level atomic increments in the same transaction as the
// deposit append.
type WasteBalance struct {
	WargaID     uint      `json:"warga_id" gorm:"primaryKey;autoIncrement:false"`
	TotalAmount int64     `json:"total_amount" gorm:"not null;default:0"`
	TotalPoints int64     `json:"total_points" gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at"`
}
