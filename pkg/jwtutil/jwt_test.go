package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rukun-service/internal/model"
	"rukun-service/pkg/config"
)

func testAdmin() *model.AdminUser {
	unitID := uint(3)
	return &model.AdminUser{
		ID:       7,
		Email:    "rt03@rukun.id",
		Name:     "Pak Budi",
		Role:     model.RoleAdminRT,
		RTUnitID: &unitID,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 168})

	token, err := GenerateToken(testAdmin(), "RT 03")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
	assert.Equal(t, "rt03@rukun.id", claims.Email)
	assert.Equal(t, model.RoleAdminRT, claims.Role)
	require.NotNil(t, claims.RTUnitID)
	assert.Equal(t, uint(3), *claims.RTUnitID)
	assert.Equal(t, "RT 03", claims.RTUnitName)
}

func TestTokenSignedWithDifferentKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 168})
	token, err := GenerateToken(testAdmin(), "RT 03")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 168})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: -1})
	token, err := GenerateToken(testAdmin(), "RT 03")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 168})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestMalformedToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 168})

	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.."} {
		_, err := ValidateToken(tok)
		assert.Error(t, err, "token %q must not validate", tok)
	}
}

func TestSuperAdminHasNoUnit(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 168})

	admin := &model.AdminUser{ID: 1, Email: "pusat@rukun.id", Role: model.RoleSuperAdmin}
	token, err := GenerateToken(admin, "")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, claims.Role)
	assert.Nil(t, claims.RTUnitID)
}
