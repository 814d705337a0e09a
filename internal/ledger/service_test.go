package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rukun-service/internal/errorx"
	"rukun-service/internal/model"
	"rukun-service/pkg/database"
	"rukun-service/pkg/jwtutil"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// Single connection keeps the in-memory database alive and serializes
	// store access the way a real server's pool would under contention.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedLedgerFixtures(t *testing.T, db *gorm.DB) (*model.RTUnit, *model.Warga, *model.WasteType) {
	unit := &model.RTUnit{Name: "RT 01", KuotaKK: 50, Active: true}
	require.NoError(t, db.Create(unit).Error)

	warga := &model.Warga{RTUnitID: unit.ID, NomorKK: "3171000000000001", Name: "Ibu Sari", Phone: "081234567890", Active: true}
	require.NoError(t, db.Create(warga).Error)

	wasteType := &model.WasteType{Name: "Plastik PET", PricePerKg: 2000, PointsPerKg: 10, Active: true}
	require.NoError(t, db.Create(wasteType).Error)

	return unit, warga, wasteType
}

func adminRTClaims(adminID, unitID uint) *jwtutil.SessionClaims {
	return &jwtutil.SessionClaims{AdminID: adminID, Role: model.RoleAdminRT, RTUnitID: &unitID}
}

func superAdminClaims(adminID uint) *jwtutil.SessionClaims {
	return &jwtutil.SessionClaims{AdminID: adminID, Role: model.RoleSuperAdmin}
}

func TestDepositFloorsAmountAndPoints(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)
	ctx := context.Background()

	deposit, balance, err := svc.Deposit(ctx, adminRTClaims(1, unit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), deposit.Amount)
	assert.Equal(t, int64(25), deposit.Points)
	assert.Equal(t, int64(5000), balance.TotalAmount)
	assert.Equal(t, int64(25), balance.TotalPoints)

	// 2000 * 2.33 = 4660, floored, never rounded.
	deposit, _, err = svc.Deposit(ctx, adminRTClaims(1, unit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 2.33,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4660), deposit.Amount)
	assert.Equal(t, int64(23), deposit.Points)
}

func TestSequentialDepositsAreAdditive(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, _ := seedLedgerFixtures(t, db)
	typeA := &model.WasteType{Name: "Kertas", PricePerKg: 1000, PointsPerKg: 10, Active: true}
	typeB := &model.WasteType{Name: "Logam", PricePerKg: 5000, PointsPerKg: 15, Active: true}
	require.NoError(t, db.Create(typeA).Error)
	require.NoError(t, db.Create(typeB).Error)

	svc := NewService(db)
	ctx := context.Background()
	actor := adminRTClaims(1, unit.ID)

	_, _, err := svc.Deposit(ctx, actor, DepositRequest{WargaID: warga.ID, WasteTypeID: typeA.ID, WeightKg: 1})
	require.NoError(t, err)
	_, balance, err := svc.Deposit(ctx, actor, DepositRequest{WargaID: warga.ID, WasteTypeID: typeB.ID, WeightKg: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(25), balance.TotalPoints)
	assert.Equal(t, int64(6000), balance.TotalAmount)
}

func TestConcurrentDepositsAreAdditive(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)
	actor := adminRTClaims(1, unit.ID)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Deposit(context.Background(), actor, DepositRequest{
				WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// A lost update would leave fewer than workers * 10 points.
	balance, err := svc.Balance(context.Background(), warga.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), balance.TotalPoints)
	assert.Equal(t, int64(workers*2000), balance.TotalAmount)

	var count int64
	require.NoError(t, db.Model(&model.WasteDeposit{}).Where("warga_id = ?", warga.ID).Count(&count).Error)
	assert.Equal(t, int64(workers), count)
}

func TestDepositIdempotencyKey(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)
	ctx := context.Background()
	actor := adminRTClaims(1, unit.ID)

	requestID := "req-abc-123"
	first, _, err := svc.Deposit(ctx, actor, DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 1, RequestID: &requestID,
	})
	require.NoError(t, err)

	// The retried request returns the original deposit and credits nothing.
	replay, balance, err := svc.Deposit(ctx, actor, DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 1, RequestID: &requestID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, int64(10), balance.TotalPoints)

	var count int64
	require.NoError(t, db.Model(&model.WasteDeposit{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDepositUnknownWasteType(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, _ := seedLedgerFixtures(t, db)
	svc := NewService(db)

	_, _, err := svc.Deposit(context.Background(), adminRTClaims(1, unit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: 999, WeightKg: 1,
	})
	assert.ErrorIs(t, err, errorx.ErrWasteTypeNotFound)
}

func TestAdminRTCannotDepositCrossUnit(t *testing.T) {
	db := setupTestDB(t)
	_, warga, wasteType := seedLedgerFixtures(t, db)

	otherUnit := &model.RTUnit{Name: "RT 02", KuotaKK: 50, Active: true}
	require.NoError(t, db.Create(otherUnit).Error)

	svc := NewService(db)
	_, _, err := svc.Deposit(context.Background(), adminRTClaims(9, otherUnit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 1,
	})
	assert.ErrorIs(t, err, errorx.ErrForbidden)

	// Nothing may be persisted on a denied deposit.
	var count int64
	require.NoError(t, db.Model(&model.WasteDeposit{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSuperAdminDepositTaggedWithActorUnit(t *testing.T) {
	db := setupTestDB(t)
	_, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)

	deposit, _, err := svc.Deposit(context.Background(), superAdminClaims(2), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 1,
	})
	require.NoError(t, err)

	// The transaction carries the processing admin's unit, which for a super
	// admin is none, not the warga's unit.
	assert.Nil(t, deposit.RTUnitID)
	assert.Equal(t, uint(2), deposit.ProcessedBy)
}

func TestBalanceAbsentReadsAsZero(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	balance, err := svc.Balance(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.TotalAmount)
	assert.Equal(t, int64(0), balance.TotalPoints)
}

func TestBalanceByPhone(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, adminRTClaims(1, unit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 3,
	})
	require.NoError(t, err)

	found, balance, err := svc.BalanceByPhone(ctx, "081234567890")
	require.NoError(t, err)
	assert.Equal(t, warga.ID, found.ID)
	assert.Equal(t, int64(30), balance.TotalPoints)

	_, _, err = svc.BalanceByPhone(ctx, "080000000000")
	assert.ErrorIs(t, err, errorx.ErrNotFound)

	_, _, err = svc.BalanceByPhone(ctx, "")
	assert.ErrorIs(t, err, errorx.ErrNotFound)
}

func TestVerifyBalance(t *testing.T) {
	db := setupTestDB(t)
	unit, warga, wasteType := seedLedgerFixtures(t, db)
	svc := NewService(db)
	ctx := context.Background()

	_, _, err := svc.Deposit(ctx, adminRTClaims(1, unit.ID), DepositRequest{
		WargaID: warga.ID, WasteTypeID: wasteType.ID, WeightKg: 2,
	})
	require.NoError(t, err)

	_, err = svc.VerifyBalance(ctx, warga.ID)
	require.NoError(t, err)

	// Corrupt the balance row behind the service's back.
	require.NoError(t, db.Model(&model.WasteBalance{}).
		Where("warga_id = ?", warga.ID).
		Update("total_points", 999).Error)

	_, err = svc.VerifyBalance(ctx, warga.ID)
	assert.ErrorIs(t, err, errorx.ErrLedgerInconsistency)
}
