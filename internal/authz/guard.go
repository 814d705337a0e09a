package authz

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"rukun-service/internal/errorx"
	"rukun-service/internal/model"
	"rukun-service/internal/session"
	"rukun-service/pkg/jwtutil"
)

// ContextKey is the echo context key under which resolved claims are cached
// for the rest of the request.
const ContextKey = "session_claims"

// Guard resolves sessions from inbound requests and answers role and
// unit-scoping questions. Read-only after construction, safe for concurrent
// use.
type Guard struct {
	cookieName string
	revocation session.RevocationStore
}

func NewGuard(cookieName string, revocation session.RevocationStore) *Guard {
	return &Guard{cookieName: cookieName, revocation: revocation}
}

// Resolve returns the session for the request or nil. Absent credential,
// failed decode, expiry and revocation all look identical to the caller.
func (g *Guard) Resolve(c echo.Context) *jwtutil.SessionClaims {
	if claims, ok := c.Get(ContextKey).(*jwtutil.SessionClaims); ok {
		return claims
	}

	token := g.extractToken(c)
	if token == "" {
		return nil
	}

	claims, err := jwtutil.ValidateToken(token)
	if err != nil {
		return nil
	}

	if g.revocation != nil {
		revokedAt, found, err := g.revocation.RevokedAfter(c.Request().Context(), claims.AdminID)
		// JWT iat carries second precision while the revocation mark is a
		// nanosecond timestamp, so within the revocation second the two are
		// indistinguishable. Revocation wins the tie: a token issued in that
		// same second stays dead until the next second's login, which is the
		// safe side of the ambiguity.
		if err == nil && found && claims.IssuedAt != nil && !claims.IssuedAt.Time.After(revokedAt) {
			return nil
		}
	}

	c.Set(ContextKey, claims)
	return claims
}

// Require resolves the session and checks it against the allowed role set.
// An empty set admits any authenticated admin.
func (g *Guard) Require(c echo.Context, roles ...model.Role) (*jwtutil.SessionClaims, error) {
	claims := g.Resolve(c)
	if claims == nil {
		return nil, errorx.ErrUnauthorized
	}
	if len(roles) > 0 && !claims.Role.In(roles...) {
		return nil, errorx.ErrForbidden
	}
	return claims, nil
}

// ScopeToUnit narrows a list query to the caller's RT unit. A super admin is
// left unscoped unless they explicitly requested a unit; an ADMIN_RT is
// always pinned to their own unit and any requested unit is ignored, so scope
// can never be widened through request parameters.
func (g *Guard) ScopeToUnit(claims *jwtutil.SessionClaims, requestedUnit *uint, q *gorm.DB) *gorm.DB {
	if claims.Role.CanCrossUnits() {
		if requestedUnit != nil {
			return q.Where("rt_unit_id = ?", *requestedUnit)
		}
		return q
	}
	return q.Where("rt_unit_id = ?", derefUnit(claims.RTUnitID))
}

// CanAccessUnit is the single-resource ownership check. A nil resource unit
// means a shared resource accessible to any authorized role.
func (g *Guard) CanAccessUnit(claims *jwtutil.SessionClaims, resourceUnit *uint) bool {
	if resourceUnit == nil {
		return true
	}
	if claims.Role.CanCrossUnits() {
		return true
	}
	return claims.RTUnitID != nil && *claims.RTUnitID == *resourceUnit
}

// HTTPStatus maps authentication and authorization errors to response codes.
func HTTPStatus(err error) int {
	switch err {
	case errorx.ErrInvalidCredentials, errorx.ErrUnauthorized:
		return http.StatusUnauthorized
	case errorx.ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// extractToken reads the session cookie and falls back to a Bearer header so
// non-browser clients can authenticate the same way.
func (g *Guard) extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(g.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func derefUnit(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
