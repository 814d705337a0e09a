package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"rukun-service/internal/authz"
	"rukun-service/internal/errorx"
	"rukun-service/internal/ledger"
	"rukun-service/internal/session"
	"rukun-service/internal/warga"
	"rukun-service/pkg/config"
)

// Handler carries the request-path dependencies. Constructed once at startup
// and shared by all routes.
type Handler struct {
	DB         *gorm.DB
	Guard      *authz.Guard
	Ledger     *ledger.Service
	Warga      *warga.Service
	Revocation session.RevocationStore
	Cfg        *config.Config
}

func New(db *gorm.DB, guard *authz.Guard, revocation session.RevocationStore, cfg *config.Config) *Handler {
	return &Handler{
		DB:         db,
		Guard:      guard,
		Ledger:     ledger.NewService(db),
		Warga:      warga.NewService(db),
		Revocation: revocation,
		Cfg:        cfg,
	}
}

// writeError maps core errors to HTTP responses. Authorization failures stay
// generic; constraint violations name the constraint.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errorx.ErrInvalidCredentials),
		errors.Is(err, errorx.ErrUnauthorized),
		errors.Is(err, errorx.ErrForbidden):
		return c.JSON(authz.HTTPStatus(err), echo.Map{"error": err.Error()})
	case errors.Is(err, errorx.ErrNotFound), errors.Is(err, errorx.ErrWasteTypeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, errorx.ErrQuotaExceeded), errors.Is(err, errorx.ErrDuplicateWarga):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, errorx.ErrInvalidWeight):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
