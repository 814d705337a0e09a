package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of administrative roles. Role checks go through the
// methods below rather than ad hoc string comparisons at call sites.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdminRT    Role = "ADMIN_RT"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdminRT
}

// CanCrossUnits reports whether the role may read or mutate data outside its
// own RT unit.
func (r Role) CanCrossUnits() bool {
	return r == RoleSuperAdmin
}

// In reports whether the role is a member of the given set.
func (r Role) In(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// AdminUser represents an administrative actor.
// Invariant: SUPER_ADMIN has no RT unit, ADMIN_RT always has one.
// New ADMIN_RT accounts are created inactive pending super-admin approval;
// IsActive gates login even when the password is correct.
type AdminUser struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Email       string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password    string         `json:"-" gorm:"type:varchar(255)"`
	Name        string         `json:"name" gorm:"type:varchar(100)"`
	Role        Role           `json:"role" gorm:"type:varchar(20);not null"`
	RTUnitID    *uint          `json:"rt_unit_id,omitempty" gorm:"index"`
	IsActive    bool           `json:"is_active" gorm:"default:false"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	RTUnit *RTUnit `json:"rt_unit,omitempty" gorm:"foreignKey:RTUnitID"`
}
