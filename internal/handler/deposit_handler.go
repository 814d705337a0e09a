package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/errorx"
	"rukun-service/internal/ledger"
	"rukun-service/internal/model"
	"rukun-service/pkg/logger"
	"rukun-service/prometheus"
)

// CreateDeposit records a waste deposit for a household and returns the
// ledger entry together with the updated running totals.
func (h *Handler) CreateDeposit(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	var req ledger.DepositRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse deposit request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	deposit, balance, err := h.Ledger.Deposit(c.Request().Context(), claims, req)
	if err != nil {
		prometheus.RecordLedgerError(ledgerErrorType(err))
		log.Warn("Deposit rejected",
			zap.Uint("warga_id", req.WargaID),
			zap.Uint("waste_type_id", req.WasteTypeID),
			zap.Error(err))
		return writeError(c, err)
	}

	prometheus.RecordDeposit(deposit.WeightKg)
	log.Info("Deposit recorded",
		zap.Uint("deposit_id", deposit.ID),
		zap.Uint("warga_id", deposit.WargaID),
		zap.Int64("amount", deposit.Amount),
		zap.Int64("points", deposit.Points))

	return c.JSON(http.StatusCreated, echo.Map{
		"deposit": deposit,
		"balance": balance,
	})
}

// GetBalance is the authorized balance read; an ADMIN_RT can only read
// households of their own unit.
func (h *Handler) GetBalance(c echo.Context) error {
	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("warga_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid warga ID"})
	}

	// The unit check rides on the warga lookup.
	if _, err := h.Warga.Get(c.Request().Context(), claims, uint(id)); err != nil {
		return writeError(c, err)
	}

	balance, err := h.Ledger.Balance(c.Request().Context(), uint(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, balance)
}

// PublicBalance is the self-service lookup keyed by exact phone number with
// no session at all. Deliberately a separate, low-assurance channel; it never
// merges into the authorized path.
func (h *Handler) PublicBalance(c echo.Context) error {
	phone := c.QueryParam("phone")

	found, balance, err := h.Ledger.BalanceByPhone(c.Request().Context(), phone)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"warga_name": found.Name,
		"balance":    balance,
	})
}

// VerifyBalance reconciles a household's balance row against its deposit
// history. Super admin only.
func (h *Handler) VerifyBalance(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("warga_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid warga ID"})
	}

	balance, err := h.Ledger.VerifyBalance(c.Request().Context(), uint(id))
	if err == errorx.ErrLedgerInconsistency {
		prometheus.RecordLedgerError("inconsistency")
		log.Error("Ledger inconsistency detected", zap.Uint64("warga_id", id))
		return c.JSON(http.StatusOK, echo.Map{
			"consistent": false,
			"balance":    balance,
			"error":      err.Error(),
		})
	}
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"consistent": true,
		"balance":    balance,
	})
}

func ledgerErrorType(err error) string {
	switch err {
	case errorx.ErrWasteTypeNotFound:
		return "waste_type_not_found"
	case errorx.ErrForbidden:
		return "forbidden"
	case errorx.ErrNotFound:
		return "warga_not_found"
	case errorx.ErrInvalidWeight:
		return "invalid_weight"
	default:
		return "store_error"
	}
}
