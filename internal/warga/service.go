package warga

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"rukun-service/internal/errorx"
	"rukun-service/internal/model"
	"rukun-service/pkg/jwtutil"
)

// Service manages household (warga) registration and lookup. The RT unit's
// household quota is enforced at registration time, inside the same
// transaction as the insert.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RegisterRequest carries a new household registration. RTUnitID is only
// honored for super admins; an ADMIN_RT always registers into their own unit.
type RegisterRequest struct {
	RTUnitID *uint  `json:"rt_unit_id,omitempty"`
	NomorKK  string `json:"nomor_kk" validate:"required,max=30"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Address  string `json:"address"`
}

// Register creates a warga in the resolved unit, failing with
// ErrQuotaExceeded when the unit is full and ErrDuplicateWarga when the nomor
// KK is already registered there. On failure no row is created.
func (s *Service) Register(ctx context.Context, actor *jwtutil.SessionClaims, req RegisterRequest) (*model.Warga, error) {
	unitID, err := s.resolveUnit(actor, req.RTUnitID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var unit model.RTUnit
	if err := db.Where("active = ?", true).First(&unit, unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.ErrNotFound
		}
		return nil, err
	}

	record := model.Warga{
		RTUnitID: unitID,
		NomorKK:  req.NomorKK,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		Active:   true,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&model.Warga{}).
			Where("rt_unit_id = ? AND active = ?", unitID, true).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(unit.KuotaKK) {
			return errorx.ErrQuotaExceeded
		}

		var count int64
		if err := tx.Model(&model.Warga{}).
			Where("rt_unit_id = ? AND nomor_kk = ?", unitID, req.NomorKK).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errorx.ErrDuplicateWarga
		}

		return tx.Create(&record).Error
	})
	if err != nil {
		// The unique index backs the in-transaction check against races.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errorx.ErrDuplicateWarga
		}
		return nil, err
	}

	return &record, nil
}

// Get returns one warga, enforcing that an ADMIN_RT only sees their own unit.
func (s *Service) Get(ctx context.Context, actor *jwtutil.SessionClaims, id uint) (*model.Warga, error) {
	var record model.Warga
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.ErrNotFound
		}
		return nil, err
	}
	if !actor.Role.CanCrossUnits() {
		if actor.RTUnitID == nil || *actor.RTUnitID != record.RTUnitID {
			return nil, errorx.ErrForbidden
		}
	}
	return &record, nil
}

// SetActive toggles a warga's activation flag, with the same unit check as
// Get. Reactivation does not re-check the quota.
func (s *Service) SetActive(ctx context.Context, actor *jwtutil.SessionClaims, id uint, active bool) (*model.Warga, error) {
	record, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(record).Update("active", active).Error; err != nil {
		return nil, err
	}
	record.Active = active
	return record, nil
}

func (s *Service) resolveUnit(actor *jwtutil.SessionClaims, requested *uint) (uint, error) {
	if actor.Role.CanCrossUnits() {
		if requested == nil {
			return 0, errorx.ErrNotFound
		}
		return *requested, nil
	}
	if actor.RTUnitID == nil {
		return 0, errorx.ErrForbidden
	}
	return *actor.RTUnitID, nil
}
