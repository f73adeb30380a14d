package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscwoundcare/portal_backend/models"
)

func runWithRole(t *testing.T, mw echo.MiddlewareFunc, role string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}

	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, handler(c))
	return rec
}

func TestRequireAdmin(t *testing.T) {
	assert.Equal(t, http.StatusOK, runWithRole(t, RequireAdmin(), models.RoleAdmin).Code)
	assert.Equal(t, http.StatusForbidden, runWithRole(t, RequireAdmin(), models.RoleStaff).Code)
	assert.Equal(t, http.StatusForbidden, runWithRole(t, RequireAdmin(), models.RoleRep).Code)
	assert.Equal(t, http.StatusUnauthorized, runWithRole(t, RequireAdmin(), "").Code)
}

func TestRequireAdminOrStaff(t *testing.T) {
	assert.Equal(t, http.StatusOK, runWithRole(t, RequireAdminOrStaff(), models.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, runWithRole(t, RequireAdminOrStaff(), models.RoleStaff).Code)
	assert.Equal(t, http.StatusForbidden, runWithRole(t, RequireAdminOrStaff(), models.RoleRep).Code)
	assert.Equal(t, http.StatusForbidden, runWithRole(t, RequireAdminOrStaff(), models.RoleSubRep).Code)
}

func TestRequireRoleMultiple(t *testing.T) {
	mw := RequireRole(models.RoleRep, models.RoleSubRep)
	assert.Equal(t, http.StatusOK, runWithRole(t, mw, models.RoleRep).Code)
	assert.Equal(t, http.StatusOK, runWithRole(t, mw, models.RoleSubRep).Code)
	assert.Equal(t, http.StatusForbidden, runWithRole(t, mw, models.RoleAdmin).Code)
}

func TestExtractRoleEmptyContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Empty(t, ExtractRole(c))
	assert.Empty(t, GetUserIDFromToken(c))
}
