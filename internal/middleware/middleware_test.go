package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"smart-coop/internal/auth"
	"smart-coop/internal/config"
	"smart-coop/internal/logger"
	"smart-coop/internal/models"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGate struct {
	users map[string]*models.User
	err   error
}

func (g stubGate) Authenticate(_ context.Context, raw string) (*models.User, *auth.Claims, error) {
	if raw == "" {
		return nil, nil, auth.ErrMissingToken
	}
	if g.err != nil {
		return nil, nil, g.err
	}
	if u, ok := g.users[raw]; ok {
		return u, &auth.Claims{UserID: u.ID}, nil
	}
	return nil, nil, auth.ErrRevoked
}

func newEngine(gate Authenticator, logBuf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	if logBuf != nil {
		log = logger.NewWithWriter(logBuf, config.LogConfig{Level: "info"})
	}
	r := gin.New()
	r.Use(RequestLogger(log))
	protected := r.Group("", AuthMiddleware(gate, log))
	protected.GET("/me", func(c *gin.Context) {
		user, _ := CurrentUser(c)
		util.Success(c, util.Response{"id": user.ID, "token": CurrentToken(c)})
	})
	protected.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		util.Success(c, util.Response{})
	})
	return r
}

func do(r http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthMiddleware_Verdicts(t *testing.T) {
	gate := stubGate{users: map[string]*models.User{
		"good":  {ID: 1, Role: models.RoleUser},
		"admin": {ID: 2, Role: models.RoleAdmin},
	}}
	r := newEngine(gate, nil)

	w, body := do(r, "/me", "good")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["id"])
	assert.Equal(t, "good", data["token"])

	w, body = do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, util.CodeAuth, body["code"])
	assert.Equal(t, "authentication required", body["message"])

	w, body = do(r, "/me", "revoked")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, util.CodeAuth, body["code"])
	assert.Equal(t, "please log in again", body["message"])

	w, body = do(r, "/admin", "good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.EqualValues(t, util.CodeForbidden, body["code"])

	w, _ = do(r, "/admin", "admin")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_SessionExpired(t *testing.T) {
	r := newEngine(stubGate{err: fmt.Errorf("%w: exp passed", auth.ErrSessionExpired)}, nil)
	w, body := do(r, "/me", "old")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, util.CodeSessionExpired, body["code"])
}

func TestAuthMiddleware_StoreFailureIs500(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(stubGate{err: errors.New("connection refused")}, &buf)
	w, body := do(r, "/me", "any")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.EqualValues(t, util.CodeServerErr, body["code"])
	assert.Contains(t, buf.String(), "connection refused")
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		header, query, want string
	}{
		{"Bearer abc", "", "abc"},
		{"bearer abc", "", "abc"},
		{"Basic abc", "", ""},
		{"", "xyz", "xyz"},
		{"Bearer abc", "xyz", "abc"},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?token="+tc.query, nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, BearerToken(c), "header=%q query=%q", tc.header, tc.query)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(stubGate{users: map[string]*models.User{"good": {ID: 9}}}, &buf)
	do(r, "/me", "good")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/me", line["path"])
	assert.EqualValues(t, 200, line["status"])
	assert.EqualValues(t, 9, line["user_id"])
}
