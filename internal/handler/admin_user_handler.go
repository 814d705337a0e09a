package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/model"
	"rukun-service/pkg/hashutil"
	"rukun-service/pkg/logger"
	"rukun-service/prometheus"
)

type createAdminRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Name     string     `json:"name" validate:"required,max=100"`
	Role     model.Role `json:"role" validate:"required"`
	RTUnitID *uint      `json:"rt_unit_id,omitempty"`
}

// CreateAdminUser creates an administrative principal. ADMIN_RT accounts are
// created inactive and cannot log in until approved. Super admin only.
func (h *Handler) CreateAdminUser(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	var req createAdminRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse admin creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// SUPER_ADMIN carries no unit, ADMIN_RT always carries one.
	if !req.Role.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	if req.Role == model.RoleSuperAdmin && req.RTUnitID != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "SUPER_ADMIN must not have an RT unit"})
	}
	if req.Role == model.RoleAdminRT {
		if req.RTUnitID == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ADMIN_RT requires an RT unit"})
		}
		var unit model.RTUnit
		if result := h.DB.Where("active = ?", true).First(&unit, *req.RTUnitID); result.Error != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "RT unit not found"})
		}
	}

	digest, err := hashutil.Hash(req.Password)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "admin creation failed"})
	}

	// Stored normalized; login folds its input the same way before the
	// lookup.
	admin := model.AdminUser{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: digest,
		Name:     req.Name,
		Role:     req.Role,
		RTUnitID: req.RTUnitID,
		// Pending approval; activation is a separate super-admin action.
		IsActive: req.Role == model.RoleSuperAdmin,
	}

	if result := h.DB.Create(&admin); result.Error != nil {
		log.Error("Failed to create admin user", zap.Error(result.Error))
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	log.Info("Admin user created",
		zap.String("email", admin.Email),
		zap.String("role", string(admin.Role)),
		zap.Bool("is_active", admin.IsActive))

	return c.JSON(http.StatusCreated, admin)
}

// ListAdminUsers lists administrative principals. Super admin only.
func (h *Handler) ListAdminUsers(c echo.Context) error {
	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	var admins []model.AdminUser
	if result := h.DB.Preload("RTUnit").Order("id").Find(&admins); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve admins"})
	}
	return c.JSON(http.StatusOK, admins)
}

// SetAdminActive toggles a principal's activation flag. Deactivation also
// revokes all outstanding sessions, so access ends now rather than at token
// expiry.
func (h *Handler) SetAdminActive(c echo.Context) error {
	log := logger.FromContext(c)

	if _, err := h.Guard.Require(c, model.RoleSuperAdmin); err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid admin ID"})
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var admin model.AdminUser
	if result := h.DB.First(&admin, id); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "admin not found"})
	}

	if result := h.DB.Model(&admin).Update("is_active", req.Active); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "admin update failed"})
	}

	if !req.Active {
		if err := h.Revocation.Revoke(c.Request().Context(), admin.ID, time.Now()); err != nil {
			log.Error("Failed to revoke sessions of deactivated admin",
				zap.Uint("admin_id", admin.ID), zap.Error(err))
		}
		prometheus.RecordAuthError("admin_deactivated")
	}

	log.Info("Admin activation changed", zap.Uint("id", admin.ID), zap.Bool("active", req.Active))
	admin.IsActive = req.Active
	return c.JSON(http.StatusOK, admin)
}
