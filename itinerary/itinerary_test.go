package itinerary

import (
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
	tokens *middleware.Auth
}

func newFixture() *fixture {
	tokens := middleware.NewAuth("itinerary-secret", time.Hour)
	router := httprouter.New()
	NewHandler(store.NewMemory().Itineraries, zap.NewNop()).Routes(router, tokens)
	return &fixture{router: router, tokens: tokens}
}

func (f *fixture) do(t *testing.T, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := f.tokens.Issue(&models.User{ID: userID, Username: userID, UserType: models.Tourist})
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

const konkan = `{
	"title": "Konkan coast",
	"startDate": "2026-12-20",
	"endDate": "2026-12-27",
	"tripType": "beach",
	"places": [
		{"placeId": "p1", "name": "Ganpatipule", "day": 1},
		{"placeId": "p2", "name": "Sindhudurg Fort", "day": 3, "notes": "boat at 10"}
	]
}`

func TestItineraryLifecycle(t *testing.T) {
	f := newFixture()

	rec := f.do(t, "u1", http.MethodPost, "/api/itineraries", konkan)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var it models.Itinerary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	assert.Equal(t, "u1", it.UserID)
	require.Len(t, it.Places, 2)
	assert.Equal(t, "boat at 10", it.Places[1].Notes)

	rec = f.do(t, "u1", http.MethodGet, "/api/itineraries/"+it.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "u1", http.MethodPatch, "/api/itineraries/"+it.ID, `{"title":"Konkan in winter","places":[]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	assert.Equal(t, "Konkan in winter", it.Title)
	assert.Empty(t, it.Places)

	rec = f.do(t, "u1", http.MethodGet, "/api/itineraries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Itinerary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, f.do(t, "u1", http.MethodDelete, "/api/itineraries/"+it.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "u1", http.MethodGet, "/api/itineraries/"+it.ID, "").Code)
}

func TestItineraryIsPrivate(t *testing.T) {
	f := newFixture()
	rec := f.do(t, "u1", http.MethodPost, "/api/itineraries", konkan)
	require.Equal(t, http.StatusCreated, rec.Code)
	var it models.Itinerary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))

	assert.Equal(t, http.StatusNotFound, f.do(t, "u2", http.MethodGet, "/api/itineraries/"+it.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "u2", http.MethodPatch, "/api/itineraries/"+it.ID, `{"title":"mine"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "u2", http.MethodDelete, "/api/itineraries/"+it.ID, "").Code)

	rec = f.do(t, "u2", http.MethodGet, "/api/itineraries", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestItineraryValidation(t *testing.T) {
	f := newFixture()
	for name, body := range map[string]string{
		"missing title": `{"startDate":"2026-12-20","endDate":"2026-12-27"}`,
		"bad date":      `{"title":"x","startDate":"20/12/2026","endDate":"2026-12-27"}`,
		"end first":     `{"title":"x","startDate":"2026-12-27","endDate":"2026-12-20"}`,
		"stop no place": `{"title":"x","startDate":"2026-12-20","endDate":"2026-12-27","places":[{"name":"a"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(t, "u1", http.MethodPost, "/api/itineraries", body).Code)
		})
	}

	rec := f.do(t, "u1", http.MethodPost, "/api/itineraries", konkan)
	var it models.Itinerary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &it))
	rec = f.do(t, "u1", http.MethodPatch, "/api/itineraries/"+it.ID, `{"endDate":"2026-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItineraryRequiresToken(t *testing.T) {
	f := newFixture()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/itineraries", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
