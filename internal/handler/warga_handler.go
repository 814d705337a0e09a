package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/model"
	"rukun-service/internal/warga"
	"rukun-service/pkg/logger"
	"rukun-service/prometheus"
)

// RegisterWarga creates a household in the caller's unit (or a named unit for
// a super admin). Quota and duplicate violations come back as conflicts.
func (h *Handler) RegisterWarga(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	var req warga.RegisterRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse warga registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	record, err := h.Warga.Register(c.Request().Context(), claims, req)
	if err != nil {
		log.Warn("Warga registration rejected",
			zap.String("nomor_kk", req.NomorKK),
			zap.Error(err))
		return writeError(c, err)
	}

	prometheus.WargaRegistrationCounter.Inc()
	log.Info("Warga registered",
		zap.Uint("id", record.ID),
		zap.Uint("rt_unit_id", record.RTUnitID))

	return c.JSON(http.StatusCreated, record)
}

// ListWarga lists households, always narrowed through the guard's unit
// scoping.
func (h *Handler) ListWarga(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	requestedUnit := parseUnitParam(c.QueryParam("rt_unit_id"))

	var records []model.Warga
	query := h.Guard.ScopeToUnit(claims, requestedUnit, h.DB.Model(&model.Warga{}))
	if result := query.Order("id").Find(&records); result.Error != nil {
		log.Error("Failed to list warga", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve warga"})
	}

	return c.JSON(http.StatusOK, records)
}

// GetWarga returns one household with the ownership check applied.
func (h *Handler) GetWarga(c echo.Context) error {
	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid warga ID"})
	}

	record, err := h.Warga.Get(c.Request().Context(), claims, uint(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// SetWargaActive toggles a household's activation flag.
func (h *Handler) SetWargaActive(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid warga ID"})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	record, err := h.Warga.SetActive(c.Request().Context(), claims, uint(id), req.Active)
	if err != nil {
		return writeError(c, err)
	}

	log.Info("Warga activation changed",
		zap.Uint("id", record.ID),
		zap.Bool("active", record.Active))
	return c.JSON(http.StatusOK, record)
}

func parseUnitParam(raw string) *uint {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	id := uint(parsed)
	return &id
}
