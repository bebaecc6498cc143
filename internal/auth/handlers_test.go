package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/device"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

type sessionEnvelope struct {
	Data auth.Session `json:"data"`
}

type errorEnvelope struct {
	Error common.ErrorBody `json:"error"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := auth.NewService(auth.Config{Store: storage.NewMemoryStore(), Secret: "handler-secret", TokenTTL: time.Hour})
	require.NoError(t, err)
	h := &auth.Handler{Service: svc}
	mw := auth.Middleware{Service: svc}

	r := chi.NewRouter()
	r.Use(device.NewResolver("", "").Middleware)
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/session", h.Session)
	r.With(mw.RequireAuth).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.UserID(r.Context())
		common.Data(w, http.StatusOK, map[string]string{"userId": id})
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, deviceID, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set(device.DefaultHeader, deviceID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginSessionLogoutFlow(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodGet, "/auth/session", "dev-1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "dev-1", `{"email":"sam@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.Equal(t, "sam", login.Data.User.Name)
	require.NotEmpty(t, login.Data.Token)

	rec = do(t, h, http.MethodGet, "/auth/session", "dev-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.Equal(t, login.Data.User, sess.Data.User)

	rec = do(t, h, http.MethodGet, "/me", "dev-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), login.Data.User.ID)

	rec = do(t, h, http.MethodGet, "/me", "dev-2", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/me", "dev-2", "", "Authorization", "Bearer "+login.Data.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/logout", "dev-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/auth/session", "dev-1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestSignupConflictAndWrongPassword(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPost, "/auth/signup", "dev-1", `{"name":"Ria","email":"ria@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/auth/signup", "dev-2", `{"name":"Ria","email":"ria@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "dev-2", `{"email":"ria@example.com","password":"nope-nope"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}

func TestLoginValidationErrors(t *testing.T) {
	h := newRouter(t)

	rec := do(t, h, http.MethodPost, "/auth/login", "dev-1", `{"email":"bad","password":"123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "email")
	require.Contains(t, details, "password")

	rec = do(t, h, http.MethodPost, "/auth/login", "dev-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
