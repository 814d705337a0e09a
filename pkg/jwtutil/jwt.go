package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"rukun-service/internal/model"
	"rukun-service/pkg/config"
)

var (
	signingKey []byte
	expiration time.Duration
)

// ErrNotInitialized is returned when tokens are generated before Initialize.
var ErrNotInitialized = errors.New("jwtutil: signing key not initialized")

// SessionClaims is the resolved identity embedded in the session token.
// It is computed from the AdminUser at login time and is only as fresh as the
// token itself; revocation is handled separately by the revocation store.
type SessionClaims struct {
	AdminID    uint       `json:"admin_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       model.Role `json:"role"`
	RTUnitID   *uint      `json:"rt_unit_id,omitempty"`
	RTUnitName string     `json:"rt_unit_name,omitempty"`
	jwt.RegisteredClaims
}

// Initialize stores the signing key and token lifetime. Called once at
// startup; the key is read-only afterwards and safe for concurrent use.
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	expiration = time.Duration(cfg.ExpirationHours) * time.Hour
}

// Expiration returns the configured token lifetime.
func Expiration() time.Duration {
	return expiration
}

// GenerateToken creates a signed session token for the given admin.
func GenerateToken(admin *model.AdminUser, unitName string) (string, error) {
	if len(signingKey) == 0 {
		return "", ErrNotInitialized
	}

	now := time.Now()
	claims := SessionClaims{
		AdminID:    admin.ID,
		Email:      admin.Email,
		Name:       admin.Name,
		Role:       admin.Role,
		RTUnitID:   admin.RTUnitID,
		RTUnitName: unitName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken verifies signature and expiry and parses the session claims.
// Any failure is returned as an error; callers treat every error the same as
// an absent token.
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
