package guides

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mahatour/middleware"
	"mahatour/models"
	"mahatour/store"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	router *httprouter.Router
	store  *store.Store
	tokens *middleware.Auth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()
	for _, g := range []models.GuideProfile{
		{UserID: "g1", Location: "Pune", Rating: 4.2, Languages: []string{"Marathi", "English"}},
		{UserID: "g2", Location: "Navi Mumbai", Rating: 4.9},
		{UserID: "g3", Location: "Mumbai", Rating: 3.5},
	} {
		g := g
		require.NoError(t, s.Guides.Create(ctx, &g))
	}
	tokens := middleware.NewAuth("guides-secret", time.Hour)
	router := httprouter.New()
	NewHandler(s.Guides, zap.NewNop()).Routes(router, tokens)
	return &fixture{router: router, store: s, tokens: tokens}
}

func (f *fixture) do(t *testing.T, as *models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if as != nil {
		token, err := f.tokens.Issue(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) []models.GuideProfile {
	t.Helper()
	var out []models.GuideProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListGuides(t *testing.T) {
	f := newFixture(t)

	all := decode(t, f.do(t, nil, http.MethodGet, "/api/guides", ""))
	require.Len(t, all, 3)
	assert.Equal(t, "g2", all[0].UserID)
	assert.Equal(t, "g3", all[2].UserID)

	mumbai := decode(t, f.do(t, nil, http.MethodGet, "/api/guides?location=mumbai", ""))
	require.Len(t, mumbai, 2)
	assert.Equal(t, "g2", mumbai[0].UserID)

	paged := decode(t, f.do(t, nil, http.MethodGet, "/api/guides?limit=1&page=2", ""))
	require.Len(t, paged, 1)
	assert.Equal(t, "g1", paged[0].UserID)
}

func TestGetGuide(t *testing.T) {
	f := newFixture(t)
	g, err := f.store.Guides.FindOne(context.Background(), store.Filter{"userId": "g1"})
	require.NoError(t, err)

	rec := f.do(t, nil, http.MethodGet, "/api/guides/"+g.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Marathi")
	assert.Equal(t, http.StatusNotFound, f.do(t, nil, http.MethodGet, "/api/guides/nope", "").Code)
}

func TestCreateGuide(t *testing.T) {
	f := newFixture(t)
	body := `{"location":"Nashik","experience":6,"languages":["Marathi","Hindi"],"specialties":["vineyards"]}`

	assert.Equal(t, http.StatusUnauthorized, f.do(t, nil, http.MethodPost, "/api/guides", body).Code)

	tourist := &models.User{ID: "t1", Username: "tara", UserType: models.Tourist}
	assert.Equal(t, http.StatusForbidden, f.do(t, tourist, http.MethodPost, "/api/guides", body).Code)

	guide := &models.User{ID: "g9", Username: "vikram", UserType: models.Guide}
	rec := f.do(t, guide, http.MethodPost, "/api/guides", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g models.GuideProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, "g9", g.UserID)
	assert.Zero(t, g.Rating)

	assert.Equal(t, http.StatusConflict, f.do(t, guide, http.MethodPost, "/api/guides", body).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, guide, http.MethodPost, "/api/guides", `{"experience":-1}`).Code)
}

func TestUpdateGuideOwnerOnly(t *testing.T) {
	f := newFixture(t)
	g, err := f.store.Guides.FindOne(context.Background(), store.Filter{"userId": "g1"})
	require.NoError(t, err)

	other := &models.User{ID: "g2", Username: "other", UserType: models.Guide}
	assert.Equal(t, http.StatusForbidden, f.do(t, other, http.MethodPatch, "/api/guides/"+g.ID, `{"bio":"hi"}`).Code)

	owner := &models.User{ID: "g1", Username: "owner", UserType: models.Guide}
	rec := f.do(t, owner, http.MethodPatch, "/api/guides/"+g.ID, `{"bio":"Walking tours of the peths","experience":9}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := f.store.Guides.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Walking tours of the peths", stored.Bio)
	assert.Equal(t, 9, stored.Experience)
	assert.Equal(t, "Pune", stored.Location)

	assert.Equal(t, http.StatusBadRequest, f.do(t, owner, http.MethodPatch, "/api/guides/"+g.ID, `{}`).Code)
}
