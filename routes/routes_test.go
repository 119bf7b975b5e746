package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mahatour/booking"
	"mahatour/middleware"
	"mahatour/notify"
	"mahatour/ratelim"
	"mahatour/rdx"
	"mahatour/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := zap.NewNop()
	hub := notify.NewHub(log)
	go hub.Run()
	t.Cleanup(hub.Stop)

	return NewRouter(Deps{
		Store:    store.NewMemory(),
		Cache:    rdx.NewMemory(),
		Tokens:   middleware.NewAuth("routes-secret", time.Hour),
		Limiter:  ratelim.NewRateLimiter(600, 100, time.Minute),
		Hub:      hub,
		Vouchers: booking.NewVouchers("routes-voucher"),
		Log:      log,
	})
}

func serve(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/api/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "up", body["database"])
	_, err := time.Parse(time.RFC3339, body["time"])
	assert.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "", "").Code)
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/api/auth/login", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"method GET not allowed"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestRegisterThenUseToken(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodPost, "/api/auth/register",
		`{"username":"pooja","email":"pooja@example.in","password":"s3cret-pass","fullName":"Pooja Shinde","userType":"guide"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	rec = serve(h, http.MethodGet, "/api/guides", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), session.ID)

	rec = serve(h, http.MethodPost, "/api/places",
		`{"name":"Ellora Caves","category":"heritage","location":"Aurangabad"}`, session.Token)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(h, http.MethodGet, "/api/places", "", "")
	assert.Contains(t, rec.Body.String(), "Ellora Caves")
}
