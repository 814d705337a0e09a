package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rukun-service/internal/errorx"
	"rukun-service/internal/model"
	"rukun-service/pkg/jwtutil"
)

// Service implements the waste-bank deposit ledger: an append-only deposit
// log plus one running-balance row per warga, kept consistent by writing both
// in a single database transaction with a store-level atomic increment.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DepositRequest is a validated deposit command. RequestID is an optional
// client-chosen idempotency key; replaying the same key returns the already
// recorded deposit instead of crediting twice.
type DepositRequest struct {
	WargaID     uint    `json:"warga_id" validate:"required"`
	WasteTypeID uint    `json:"waste_type_id" validate:"required"`
	WeightKg    float64 `json:"weight_kg" validate:"required,gt=0"`
	RequestID   *string `json:"request_id,omitempty" validate:"omitempty,max=64"`
}

// Deposit records a deposit processed by the given actor and applies its
// balance effect. The deposit row is tagged with the actor's RT unit, not the
// warga's; for a super admin acting cross-unit the two can differ.
func (s *Service) Deposit(ctx context.Context, actor *jwtutil.SessionClaims, req DepositRequest) (*model.WasteDeposit, *model.WasteBalance, error) {
	if req.WeightKg <= 0 {
		return nil, nil, errorx.ErrInvalidWeight
	}

	db := s.db.WithContext(ctx)

	if req.RequestID != nil {
		if deposit, balance, ok, err := s.findByRequestID(db, *req.RequestID); err != nil {
			return nil, nil, err
		} else if ok {
			return deposit, balance, nil
		}
	}

	var wasteType model.WasteType
	if err := db.Where("active = ?", true).First(&wasteType, req.WasteTypeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.ErrWasteTypeNotFound
		}
		return nil, nil, err
	}

	var warga model.Warga
	if err := db.First(&warga, req.WargaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.ErrNotFound
		}
		return nil, nil, err
	}

	// ADMIN_RT may only credit warga of their own unit.
	if !actor.Role.CanCrossUnits() {
		if actor.RTUnitID == nil || *actor.RTUnitID != warga.RTUnitID {
			return nil, nil, errorx.ErrForbidden
		}
	}

	// Fractional rupiah and points are never awarded: floor, not round.
	amount := int64(math.Floor(float64(wasteType.PricePerKg) * req.WeightKg))
	points := int64(math.Floor(float64(wasteType.PointsPerKg) * req.WeightKg))

	deposit := model.WasteDeposit{
		WargaID:     req.WargaID,
		WasteTypeID: req.WasteTypeID,
		WeightKg:    req.WeightKg,
		Amount:      amount,
		Points:      points,
		ProcessedBy: actor.AdminID,
		RTUnitID:    actor.RTUnitID,
		RequestID:   req.RequestID,
	}

	// Append and balance increment are one atomic unit: either both land or
	// neither does. The increment happens in the store, so concurrent
	// deposits for the same warga are additive rather than last-write-wins.
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deposit).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "warga_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_amount": gorm.Expr("total_amount + ?", amount),
				"total_points": gorm.Expr("total_points + ?", points),
				"updated_at":   time.Now(),
			}),
		}).Create(&model.WasteBalance{
			WargaID:     req.WargaID,
			TotalAmount: amount,
			TotalPoints: points,
		}).Error
	})
	if err != nil {
		// A concurrent replay of the same idempotency key loses the race on
		// the unique index; hand back the winner's deposit.
		if req.RequestID != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			if deposit, balance, ok, findErr := s.findByRequestID(db, *req.RequestID); findErr == nil && ok {
				return deposit, balance, nil
			}
		}
		return nil, nil, err
	}

	balance, err := s.Balance(ctx, req.WargaID)
	if err != nil {
		return nil, nil, err
	}
	return &deposit, balance, nil
}

// Balance returns the running totals for a warga; a warga with no deposits
// reads as zero.
func (s *Service) Balance(ctx context.Context, wargaID uint) (*model.WasteBalance, error) {
	var balance model.WasteBalance
	err := s.db.WithContext(ctx).First(&balance, "warga_id = ?", wargaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.WasteBalance{WargaID: wargaID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// BalanceByPhone is the public self-service lookup: no session, exact phone
// match only. The phone number acts as a shared secret; this is a deliberately
// low-assurance channel, separate from the authorized path.
func (s *Service) BalanceByPhone(ctx context.Context, phone string) (*model.Warga, *model.WasteBalance, error) {
	if phone == "" {
		return nil, nil, errorx.ErrNotFound
	}
	var warga model.Warga
	err := s.db.WithContext(ctx).Where("phone = ? AND active = ?", phone, true).First(&warga).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, errorx.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	balance, err := s.Balance(ctx, warga.ID)
	if err != nil {
		return nil, nil, err
	}
	return &warga, balance, nil
}

// VerifyBalance recomputes the totals from the deposit log and compares them
// with the stored balance row, returning ErrLedgerInconsistency on any
// divergence. With the transactional write path a divergence should never
// occur; this is the reconciliation check that proves it.
func (s *Service) VerifyBalance(ctx context.Context, wargaID uint) (*model.WasteBalance, error) {
	var computed struct {
		TotalAmount int64
		TotalPoints int64
	}
	err := s.db.WithContext(ctx).Model(&model.WasteDeposit{}).
		Select("COALESCE(SUM(amount), 0) AS total_amount, COALESCE(SUM(points), 0) AS total_points").
		Where("warga_id = ?", wargaID).
		Scan(&computed).Error
	if err != nil {
		return nil, err
	}

	balance, err := s.Balance(ctx, wargaID)
	if err != nil {
		return nil, err
	}

	if balance.TotalAmount != computed.TotalAmount || balance.TotalPoints != computed.TotalPoints {
		return balance, errorx.ErrLedgerInconsistency
	}
	return balance, nil
}

func (s *Service) findByRequestID(db *gorm.DB, requestID string) (*model.WasteDeposit, *model.WasteBalance, bool, error) {
	var existing model.WasteDeposit
	err := db.Where("request_id = ?", requestID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	var balance model.WasteBalance
	if err := db.First(&balance, "warga_id = ?", existing.WargaID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, false, err
	}
	balance.WargaID = existing.WargaID
	return &existing, &balance, true, nil
}
