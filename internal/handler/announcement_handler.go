package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/model"
	"rukun-service/pkg/logger"
)

type announcementRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Body   string `json:"body"`
	Global bool   `json:"global,omitempty"`
}

// CreateAnnouncement posts a notice. An ADMIN_RT posts into their own unit; a
// super admin may post globally (nil unit), which makes the notice visible
// and editable in every unit.
func (h *Handler) CreateAnnouncement(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	var req announcementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	unitID := claims.RTUnitID
	if req.Global {
		if !claims.Role.CanCrossUnits() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
		}
		unitID = nil
	}

	announcement := model.Announcement{
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: claims.AdminID,
		RTUnitID: unitID,
	}
	if result := h.DB.Create(&announcement); result.Error != nil {
		log.Error("Failed to create announcement", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "announcement creation failed"})
	}

	log.Info("Announcement created", zap.Uint("id", announcement.ID))
	return c.JSON(http.StatusCreated, announcement)
}

// ListAnnouncements returns the caller's unit announcements plus the global
// ones. A super admin sees everything.
func (h *Handler) ListAnnouncements(c echo.Context) error {
	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	query := h.DB.Model(&model.Announcement{})
	if !claims.Role.CanCrossUnits() {
		query = query.Where("rt_unit_id = ? OR rt_unit_id IS NULL", derefOrZero(claims.RTUnitID))
	}

	var announcements []model.Announcement
	if result := query.Order("created_at DESC").Find(&announcements); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve announcements"})
	}
	return c.JSON(http.StatusOK, announcements)
}

// UpdateAnnouncement edits a notice, guarded by the ownership check against
// the resource's own unit.
func (h *Handler) UpdateAnnouncement(c echo.Context) error {
	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	announcement, status := h.loadAnnouncement(c)
	if announcement == nil {
		return status
	}

	if !h.Guard.CanAccessUnit(claims, announcement.RTUnitID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	var req announcementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updates := map[string]interface{}{"title": req.Title, "body": req.Body}
	if result := h.DB.Model(announcement).Updates(updates); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "announcement update failed"})
	}
	return c.JSON(http.StatusOK, announcement)
}

// DeleteAnnouncement removes a notice with the same ownership check.
func (h *Handler) DeleteAnnouncement(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.Guard.Require(c, model.RoleSuperAdmin, model.RoleAdminRT)
	if err != nil {
		return writeError(c, err)
	}

	announcement, status := h.loadAnnouncement(c)
	if announcement == nil {
		return status
	}

	if !h.Guard.CanAccessUnit(claims, announcement.RTUnitID) {
		log.Warn("Cross-unit announcement delete attempt",
			zap.Uint("admin_id", claims.AdminID),
			zap.Uint("announcement_id", announcement.ID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
	}

	if result := h.DB.Delete(announcement); result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "announcement delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "announcement deleted"})
}

func (h *Handler) loadAnnouncement(c echo.Context) (*model.Announcement, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid announcement ID"})
	}
	var announcement model.Announcement
	if result := h.DB.First(&announcement, id); result.Error != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "announcement not found"})
	}
	return &announcement, nil
}

func derefOrZero(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
