package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/model"
	"rukun-service/pkg/logger"
)

type unitRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address"`
	KuotaKK int    `json:"kuota_kk" validate:"required,gt=0"`
}

// CreateUnit creates an RT unit. Super admin only.
func (h *Handler) CreateUnit(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	var req unitRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse unit creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	unit := model.RTUnit{
		Name:    req.Name,
		Address: req.Address,
		KuotaKK: req.KuotaKK,
		Active:  true,
	}
	if result := h.DB.Create(&unit); result.Error != nil {
		log.Error("Failed to create unit", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unit creation failed"})
	}

	log.Info("RT unit created", zap.String("name", unit.Name), zap.Uint("id", unit.ID))
	return c.JSON(http.StatusCreated, unit)
}

// ListUnits lists all RT units. Super admin only.
func (h *Handler) ListUnits(c echo.Context) error {
	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	var units []model.RTUnit
	if result := h.DB.Order("id").Find(&units); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve units"})
	}
	return c.JSON(http.StatusOK, units)
}

// UpdateUnit edits a unit's name, address and quota.
func (h *Handler) UpdateUnit(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid unit ID"})
	}

	var unit model.RTUnit
	if result := h.DB.First(&unit, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unit not found"})
	}

	var req unitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":     req.Name,
		"address":  req.Address,
		"kuota_kk": req.KuotaKK,
	}
	if result := h.DB.Model(&unit).Updates(updates); result.Error != nil {
		log.Error("Failed to update unit", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unit update failed"})
	}

	return c.JSON(http.StatusOK, unit)
}

// SetUnitActive toggles a unit's activation flag. Units are never
// hard-deleted.
func (h *Handler) SetUnitActive(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid unit ID"})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var unit model.RTUnit
	if result := h.DB.First(&unit, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unit not found"})
	}

	if result := h.DB.Model(&unit).Update("active", req.Active); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unit update failed"})
	}

	log.Info("RT unit activation changed", zap.Uint("id", unit.ID), zap.Bool("active", req.Active))
	unit.Active = req.Active
	return c.JSON(http.StatusOK, unit)
}
