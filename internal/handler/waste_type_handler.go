package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/model"
	"rukun-service/pkg/logger"
)

type wasteTypeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	PricePerKg  int64  `json:"price_per_kg" validate:"gte=0"`
	PointsPerKg int64  `json:"points_per_kg" validate:"gte=0"`
}

// ListWasteTypes returns the active waste categories. Available to both
// admin roles.
func (h *Handler) ListWasteTypes(c echo.Context) error {
	if _, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT); err != nil {
		return writeError(c, err)
	}

	var types []model.WasteType
	if result := h.DB.Where("active = ?", true).Order("name").Find(&types); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve waste types"})
	}
	return c.JSON(http.StatusOK, types)
}

// CreateWasteType adds a waste category. Super admin only.
func (h *Handler) CreateWasteType(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	var req wasteTypeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	wasteType := model.WasteType{
		Name:        req.Name,
		PricePerKg:  req.PricePerKg,
		PointsPerKg: req.PointsPerKg,
		Active:      true,
	}
	if result := h.DB.Create(&wasteType); result.Error != nil {
		log.Error("Failed to create waste type", zap.Error(result.Error))
		return c.JSON(http.StatusConflict, echo.Map{"error": "waste type already exists"})
	}

	log.Info("Waste type created", zap.String("name", wasteType.Name), zap.Uint("id", wasteType.ID))
	return c.JSON(http.StatusCreated, wasteType)
}

// UpdateWasteType edits a waste category's rates. Existing deposits keep the
// amounts computed with the old rates; only new deposits see the change.
func (h *Handler) UpdateWasteType(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid waste type ID"})
	}

	var wasteType model.WasteType
	if result := h.DB.First(&wasteType, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "waste type not found"})
	}

	var req wasteTypeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":          req.Name,
		"price_per_kg":  req.PricePerKg,
		"points_per_kg": req.PointsPerKg,
	}
	if result := h.DB.Model(&wasteType).Updates(updates); result.Error != nil {
		log.Error("Failed to update waste type", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "waste type update failed"})
	}

	return c.JSON(http.StatusOK, wasteType)
}

// SetWasteTypeActive retires or restores a waste category without touching
// its deposit history.
func (h *Handler) SetWasteTypeActive(c echo.Context) error {
	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid waste type ID"})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var wasteType model.WasteType
	if result := h.DB.First(&wasteType, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "waste type not found"})
	}

	if result := h.DB.Model(&wasteType).Update("active", req.Active); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "waste type update failed"})
	}

	wasteType.Active = req.Active
	return c.JSON(http.StatusOK, wasteType)
}
