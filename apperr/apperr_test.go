package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("missing password"), http.StatusBadRequest},
		{Authentication("bad credentials"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("no such place"), http.StatusNotFound},
		{MethodNotAllowed("GET"), http.StatusMethodNotAllowed},
		{Conflict("taken"), http.StatusConflict},
		{Storage("users.get", errors.New("dial tcp: refused")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Status(c.err), c.err.Error())
		assert.Equal(t, c.want, Status(fmt.Errorf("wrapped: %w", c.err)))
	}
}

func TestMessageHidesServerDetail(t *testing.T) {
	err := Storage("places.list", errors.New("connection reset by 10.0.0.4"))
	assert.Equal(t, "Server error", Message(err))
	assert.Equal(t, "missing password", Message(Validation("missing password")))
	assert.Equal(t, "Server error", Message(errors.New("x")))
}

func TestSentinelMatchesThroughWrapping(t *testing.T) {
	sentinel := New(KindNotFound, "document not found")
	wrapped := fmt.Errorf("places 42: %w", sentinel)
	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, New(KindConflict, "document not found")))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}
