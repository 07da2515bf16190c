package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tross/internal/access"
	"tross/internal/apperr"
	"tross/internal/meta"
	"tross/internal/roles"
	"tross/internal/validation"
)

// Метаданные и ролевые endpoint'ы работают без базы — их гоняем через
// httptest поверх полного роутера.

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h, err := roles.NewHierarchy([]roles.Role{
		{Name: "customer", Priority: 10},
		{Name: "dispatcher", Priority: 30},
		{Name: "manager", Priority: 40},
	})
	require.NoError(t, err)

	e := &meta.Entity{
		Name:          "invoice",
		Table:         "invoices",
		IdentityField: "number",
		Fields: map[string]meta.FieldDef{
			"number":      {Type: meta.TypeString},
			"customer_id": {Type: meta.TypeString, Required: true},
			"amount":      {Type: meta.TypeCurrency, Required: true},
			"status":      {Type: meta.TypeEnum, Values: []string{"draft", "sent", "paid"}},
		},
		FieldAccess: map[string]meta.FieldAccess{
			"customer_id": {Create: "dispatcher", Read: "dispatcher", Update: "none", Delete: "manager"},
			"amount":      {Create: "dispatcher", Read: "*", Update: "manager", Delete: "manager"},
			"status":      {Create: "dispatcher", Read: "*", Update: "manager", Delete: "manager"},
		},
		Identifier: &meta.IdentifierConfig{Prefix: "INV", Field: "number"},
	}

	ac := access.NewController(h)
	return &Server{
		Registry:  meta.NewRegistry([]*meta.Entity{e}),
		Hierarchy: h,
		Access:    ac,
		Schemas:   validation.NewBuilder(h, ac),
	}
}

func doGet(t *testing.T, s *Server, path, role string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestMetaListEndpoint(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/meta", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "invoice", list[0]["entity"])
	assert.Equal(t, "INV", list[0]["identifier_prefix"])
}

func TestMetaEntityEndpointFiltersByRole(t *testing.T) {
	s := testServer(t)

	w, body := doGet(t, s, "/api/meta/invoice", "customer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", body["role"])

	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "amount")
	assert.NotContains(t, fields, "customer_id", "customer не видит это поле — его нет и в описании")

	acc := body["access"].(map[string]any)
	assert.Empty(t, acc["create"], "customer ничего не создаёт")
	assert.Equal(t, false, acc["delete"])

	_, body = doGet(t, s, "/api/meta/invoice", "dispatcher")
	acc = body["access"].(map[string]any)
	assert.NotEmpty(t, acc["create"])
}

func TestMetaEntityEndpointUnknownEntity(t *testing.T) {
	s := testServer(t)
	w, _ := doGet(t, s, "/api/meta/ghost", "manager")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRolesEndpoint(t *testing.T) {
	s := testServer(t)
	w, body := doGet(t, s, "/api/meta/roles", "")
	require.Equal(t, http.StatusOK, w.Code)

	rolesList := body["roles"].([]any)
	require.Len(t, rolesList, 3)
	first := rolesList[0].(map[string]any)
	assert.Equal(t, "customer", first["name"], "от младшей к старшей")
}

func TestReloadRolesWithoutDB(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/roles/reload", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRenderErrorDomainAndOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	renderError(c, apperr.Permission("create", []string{"status"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission_denied")
	assert.Contains(t, w.Body.String(), "status")

	// сырые ошибки наружу не просачиваются
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	renderError(c, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Contains(t, w.Body.String(), "internal")
}

func TestReadExpectedVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mk := func(ifMatch string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPut, "/api/invoice/x", nil)
		if ifMatch != "" {
			c.Request.Header.Set("If-Match", ifMatch)
		}
		return c
	}

	v, ok := readExpectedVersion(mk(`"3"`), nil)
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	v, ok = readExpectedVersion(mk(`W/"7"`), nil)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	// версия из тела, когда заголовка нет
	v, ok = readExpectedVersion(mk(""), map[string]any{"version": float64(2)})
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)

	v, ok = readExpectedVersion(mk(""), map[string]any{"version": "4"})
	assert.True(t, ok)
	assert.Equal(t, int64(4), v)

	_, ok = readExpectedVersion(mk(""), map[string]any{})
	assert.False(t, ok)

	_, ok = readExpectedVersion(mk(`"abc"`), nil)
	assert.False(t, ok)
}

func TestRoleFromHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := testServer(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-User-Role", "Manager")
	assert.Equal(t, "manager", s.roleFrom(c))

	// нет заголовка — младшая роль, fail closed
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "customer", s.roleFrom(c))
}
