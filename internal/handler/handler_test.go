package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rukun-service/internal/authz"
	"rukun-service/internal/model"
	"rukun-service/internal/session"
	"rukun-service/pkg/config"
	"rukun-service/pkg/database"
	"rukun-service/pkg/hashutil"
	"rukun-service/pkg/jwtutil"
	"rukun-service/pkg/validation"
)

var testConfig = &config.Config{
	JWT: config.JWTConfig{
		SigningKey:      "handler-test-key",
		ExpirationHours: 168,
		CookieName:      "rukun_session",
	},
	Server: config.ServerConfig{Env: "test"},
}

func init() {
	jwtutil.Initialize(&testConfig.JWT)
}

// newTestHandler brings up the full request path against an in-memory
// database, seeded with one active super admin.
func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	digest, err := hashutil.Hash("super-secret")
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.AdminUser{
		Email:    "super@rukun.id",
		Password: digest,
		Name:     "Super",
		Role:     model.RoleSuperAdmin,
		IsActive: true,
	}).Error)

	revocation := session.NewMemoryStore()
	guard := authz.NewGuard(testConfig.JWT.CookieName, revocation)
	h := New(db, guard, revocation, testConfig)

	e := echo.New()
	e.Validator = validation.New()
	return h, e
}

// call invokes a handler directly the way echo would, returning the recorder.
func call(t *testing.T, e *echo.Echo, fn echo.HandlerFunc, method, path, body, token string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testConfig.JWT.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	require.NoError(t, fn(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, h *Handler, e *echo.Echo, email, password string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := call(t, e, h.Login, http.MethodPost, "/auth/login", body, "", nil)
	if rec.Code != http.StatusOK {
		return rec, ""
	}
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return rec, token
}

// TestAdminOnboardingFlow walks the whole lifecycle: the super admin creates a
// unit and a pending RT admin, the pending admin cannot log in, activation
// unlocks login, and the unit quota then caps registrations.
func TestAdminOnboardingFlow(t *testing.T) {
	h, e := newTestHandler(t)

	_, superToken := login(t, h, e, "super@rukun.id", "super-secret")

	// Unit with room for two households.
	rec := call(t, e, h.CreateUnit, http.MethodPost, "/api/superadmin/units",
		`{"name":"RT 05","address":"Jl. Melati 5","kuota_kk":2}`, superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	unitID := uint(decode(t, rec)["id"].(float64))

	// RT admin comes out pending approval.
	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		fmt.Sprintf(`{"email":"rt05@rukun.id","password":"rahasia-rt05","name":"Pak RT","role":"ADMIN_RT","rt_unit_id":%d}`, unitID),
		superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	assert.False(t, created["is_active"].(bool))
	adminID := uint(created["id"].(float64))

	// Pending accounts fail login exactly like a wrong password would.
	rec, _ = login(t, h, e, "rt05@rukun.id", "rahasia-rt05")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])

	rec = call(t, e, h.SetAdminActive, http.MethodPatch,
		fmt.Sprintf("/api/superadmin/admins/%d/active", adminID),
		`{"active":true}`, superToken, map[string]string{"id": fmt.Sprint(adminID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, rtToken := login(t, h, e, "rt05@rukun.id", "rahasia-rt05")
	require.Equal(t, http.StatusOK, rec.Code)

	// Two registrations fit the quota, the third is rejected and not stored.
	for i := 1; i <= 2; i++ {
		rec = call(t, e, h.RegisterWarga, http.MethodPost, "/api/admin/warga",
			fmt.Sprintf(`{"nomor_kk":"320100%d","name":"Keluarga %d"}`, i, i), rtToken, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = call(t, e, h.RegisterWarga, http.MethodPost, "/api/admin/warga",
		`{"nomor_kk":"3201003","name":"Keluarga 3"}`, rtToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	require.NoError(t, h.DB.Model(&model.Warga{}).Where("rt_unit_id = ?", unitID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestMixedCaseEmailRoundTrip(t *testing.T) {
	h, e := newTestHandler(t)
	_, superToken := login(t, h, e, "super@rukun.id", "super-secret")

	rec := call(t, e, h.CreateUnit, http.MethodPost, "/api/superadmin/units",
		`{"name":"RT 77","kuota_kk":5}`, superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	unitID := uint(decode(t, rec)["id"].(float64))

	// Creation folds the email the same way login does, so the stored value
	// matches the lookup no matter how the caller typed it.
	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		fmt.Sprintf(`{"email":"RT77@Rukun.id","password":"rahasia-rt77","name":"Pak RT 77","role":"ADMIN_RT","rt_unit_id":%d}`, unitID),
		superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	assert.Equal(t, "rt77@rukun.id", created["email"])
	adminID := uint(created["id"].(float64))

	rec = call(t, e, h.SetAdminActive, http.MethodPatch,
		fmt.Sprintf("/api/superadmin/admins/%d/active", adminID),
		`{"active":true}`, superToken, map[string]string{"id": fmt.Sprint(adminID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = login(t, h, e, "rt77@rukun.id", "rahasia-rt77")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = login(t, h, e, "RT77@Rukun.id", "rahasia-rt77")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h, e := newTestHandler(t)

	rec, _ := login(t, h, e, "super@rukun.id", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])

	rec, _ = login(t, h, e, "nobody@rukun.id", "super-secret")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h, e := newTestHandler(t)

	rec, token := login(t, h, e, "super@rukun.id", "super-secret")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == testConfig.JWT.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure) // only set in production
	assert.Equal(t, "/", cookie.Path)
	assert.Positive(t, cookie.MaxAge)
}

func TestLogoutRevokesSession(t *testing.T) {
	h, e := newTestHandler(t)

	_, token := login(t, h, e, "super@rukun.id", "super-secret")

	rec := call(t, e, h.Me, http.MethodGet, "/api/auth/me", "", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, e, h.Logout, http.MethodPost, "/auth/logout", "", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == testConfig.JWT.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// The revoked token stops resolving even though it has not expired.
	rec = call(t, e, h.Me, http.MethodGet, "/api/auth/me", "", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeactivatingAdminKillsLiveSessions(t *testing.T) {
	h, e := newTestHandler(t)

	_, superToken := login(t, h, e, "super@rukun.id", "super-secret")

	rec := call(t, e, h.CreateUnit, http.MethodPost, "/api/superadmin/units",
		`{"name":"RT 09","kuota_kk":5}`, superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	unitID := uint(decode(t, rec)["id"].(float64))

	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		fmt.Sprintf(`{"email":"rt09@rukun.id","password":"rahasia-rt09","name":"Bu RT","role":"ADMIN_RT","rt_unit_id":%d}`, unitID),
		superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	adminID := uint(decode(t, rec)["id"].(float64))

	rec = call(t, e, h.SetAdminActive, http.MethodPatch,
		fmt.Sprintf("/api/superadmin/admins/%d/active", adminID),
		`{"active":true}`, superToken, map[string]string{"id": fmt.Sprint(adminID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, rtToken := login(t, h, e, "rt09@rukun.id", "rahasia-rt09")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, e, h.SetAdminActive, http.MethodPatch,
		fmt.Sprintf("/api/superadmin/admins/%d/active", adminID),
		`{"active":false}`, superToken, map[string]string{"id": fmt.Sprint(adminID)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, e, h.Me, http.MethodGet, "/api/auth/me", "", rtToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAdminRoleInvariants(t *testing.T) {
	h, e := newTestHandler(t)
	_, superToken := login(t, h, e, "super@rukun.id", "super-secret")

	// Super admins never carry a unit.
	rec := call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		`{"email":"s2@rukun.id","password":"rahasia-s2","name":"S2","role":"SUPER_ADMIN","rt_unit_id":1}`,
		superToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// RT admins always do.
	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		`{"email":"rt@rukun.id","password":"rahasia-rt","name":"RT","role":"ADMIN_RT"}`,
		superToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown roles never reach the database.
	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		`{"email":"x@rukun.id","password":"rahasia-xx","name":"X","role":"OPERATOR"}`,
		superToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuperOnlyEndpointsRejectAdminRT(t *testing.T) {
	h, e := newTestHandler(t)
	_, superToken := login(t, h, e, "super@rukun.id", "super-secret")

	rec := call(t, e, h.CreateUnit, http.MethodPost, "/api/superadmin/units",
		`{"name":"RT 11","kuota_kk":5}`, superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	unitID := uint(decode(t, rec)["id"].(float64))

	rec = call(t, e, h.CreateAdminUser, http.MethodPost, "/api/superadmin/admins",
		fmt.Sprintf(`{"email":"rt11@rukun.id","password":"rahasia-rt11","name":"RT 11","role":"ADMIN_RT","rt_unit_id":%d}`, unitID),
		superToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	adminID := uint(decode(t, rec)["id"].(float64))
	call(t, e, h.SetAdminActive, http.MethodPatch, "/x", `{"active":true}`,
		superToken, map[string]string{"id": fmt.Sprint(adminID)})

	_, rtToken := login(t, h, e, "rt11@rukun.id", "rahasia-rt11")

	rec = call(t, e, h.CreateUnit, http.MethodPost, "/api/superadmin/units",
		`{"name":"RT 12","kuota_kk":5}`, rtToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, h.ListAdminUsers, http.MethodGet, "/api/superadmin/admins", "", rtToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
