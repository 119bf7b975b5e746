package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mahatour/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRespondWithAppErrorHidesServerDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithAppError(rec, zap.NewNop(), apperr.Storage("users.find", errors.New("dial tcp 10.0.0.3:27017")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body M
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Server error", body["error"])
	assert.NotContains(t, rec.Body.String(), "27017")
}

func TestRespondWithAppErrorClientKinds(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithAppError(rec, nil, apperr.Authentication("Invalid credentials"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())
}

type signup struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
}

func TestDecodeAndValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind apperr.Kind
		msg  string
	}{
		{"empty", ``, apperr.KindValidation, "request body is empty"},
		{"malformed", `{"username":`, apperr.KindValidation, "invalid JSON body"},
		{"invalid fields", `{"username":"ab","email":"nope"}`, apperr.KindValidation, "username (min)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst signup
			err := DecodeAndValidate(httptest.NewRecorder(), r, &dst)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Contains(t, apperr.Message(err), tc.msg)
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"guide","email":"guide@example.in"}`))
	var dst signup
	require.NoError(t, DecodeAndValidate(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "guide", dst.Username)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, Paginate(items, QueryOptions{Page: 2, Limit: 2}))
	assert.Equal(t, []int{5}, Paginate(items, QueryOptions{Page: 3, Limit: 2}))
	assert.Empty(t, Paginate(items, QueryOptions{Page: 4, Limit: 2}))
}
