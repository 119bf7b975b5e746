package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mahatour/models"
	"mahatour/rdx"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func protected(a *Auth) *httprouter.Router {
	router := httprouter.New()
	router.GET("/me", a.Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Write([]byte(UserID(r.Context())))
	}))
	router.GET("/maybe", a.OptionalAuth(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Write([]byte("anon:" + UserID(r.Context())))
	}))
	return router
}

func TestAuthenticateRoundTrip(t *testing.T) {
	a := NewAuth("test-secret", time.Hour)
	token, err := a.Issue(&models.User{ID: "u-1", Username: "guide", UserType: models.Guide})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(a).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewAuth("test-secret", time.Hour)
	other, err := NewAuth("other-secret", time.Hour).Issue(&models.User{ID: "u-1"})
	require.NoError(t, err)

	expired := NewAuth("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue(&models.User{ID: "u-1"})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"no bearer":    "Token abc",
		"wrong secret": "Bearer " + other,
		"expired":      "Bearer " + stale,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			protected(a).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestOptionalAuthProceedsAnonymously(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	protected(NewAuth("s", time.Hour)).ServeHTTP(rec, req)
	assert.Equal(t, "anon:", rec.Body.String())
}

func TestRequireUser(t *testing.T) {
	_, err := RequireUser(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Error(t, err)

	ctx := WithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &Claims{UserID: "u"})
	c, err := RequireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", c.UserID)
}

func TestLoggingAndHeaders(t *testing.T) {
	h := Logging(zap.NewNop())(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRevokedTokenIsRejected(t *testing.T) {
	a := NewAuth("test-secret", time.Hour)
	a.UseDenylist(rdx.NewMemory())
	token, err := a.Issue(&models.User{ID: "u-1"})
	require.NoError(t, err)

	claims, err := a.Parse(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, a.Revoke(context.Background(), claims))

	_, err = a.Parse(context.Background(), token)
	assert.Error(t, err)
}
