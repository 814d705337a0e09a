package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rukun-service/internal/errorx"
	"rukun-service/internal/model"
	"rukun-service/pkg/hashutil"
	"rukun-service/pkg/jwtutil"
	"rukun-service/pkg/logger"
	"rukun-service/prometheus"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an admin and issues the session cookie. An unknown
// email, a wrong password and an inactive account are indistinguishable from
// the outside.
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	defer prometheus.TrackDBOperation("query")(time.Now())
	var admin model.AdminUser
	result := h.DB.Preload("RTUnit").Where("email = ? AND is_active = ?", email, true).First(&admin)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Login lookup failed", zap.Error(result.Error))
		}
		prometheus.RecordAuthError("invalid_credentials")
		return writeError(c, errorx.ErrInvalidCredentials)
	}

	if !hashutil.Verify(req.Password, admin.Password) {
		prometheus.RecordAuthError("invalid_credentials")
		return writeError(c, errorx.ErrInvalidCredentials)
	}

	unitName := ""
	if admin.RTUnit != nil {
		unitName = admin.RTUnit.Name
	}

	token, err := jwtutil.GenerateToken(&admin, unitName)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.setSessionCookie(c, token, int(jwtutil.Expiration().Seconds()))

	// Best effort: a failed timestamp update must not fail the login.
	now := time.Now()
	if err := h.DB.Model(&admin).Update("last_login_at", now).Error; err != nil {
		log.Warn("Failed to update last login timestamp", zap.Error(err))
	}

	log.Info("Admin logged in",
		zap.String("email", admin.Email),
		zap.String("role", string(admin.Role)))

	return c.JSON(http.StatusOK, echo.Map{
		"token":   token,
		"session": sessionPayload(&admin, unitName),
	})
}

// Logout clears the session cookie and revokes every outstanding token of the
// principal; a copied token dies with the session instead of living out its
// expiry.
func (h *Handler) Logout(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LogoutCounter.Inc()

	if claims := h.Guard.Resolve(c); claims != nil {
		if err := h.Revocation.Revoke(c.Request().Context(), claims.AdminID, time.Now()); err != nil {
			log.Warn("Failed to revoke session", zap.Uint("admin_id", claims.AdminID), zap.Error(err))
		}
	}

	h.setSessionCookie(c, "", -1)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me is the session introspection endpoint used by the client UI; it is not a
// security boundary on its own.
func (h *Handler) Me(c echo.Context) error {
	claims, err := h.Guard.Require(c)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"admin_id":     claims.AdminID,
		"email":        claims.Email,
		"name":         claims.Name,
		"role":         claims.Role,
		"rt_unit_id":   claims.RTUnitID,
		"rt_unit_name": claims.RTUnitName,
	})
}

func (h *Handler) setSessionCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.JWT.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionPayload(admin *model.AdminUser, unitName string) echo.Map {
	return echo.Map{
		"admin_id":     admin.ID,
		"email":        admin.Email,
		"name":         admin.Name,
		"role":         admin.Role,
		"rt_unit_id":   admin.RTUnitID,
		"rt_unit_name": unitName,
	}
}
