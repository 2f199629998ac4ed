package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "bucket not found")
	assert.Equal(t, KindNotFound, KindOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("driver exploded")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestMessageOf_HidesInternalDetail(t *testing.T) {
	assert.Equal(t, "bucket not found", MessageOf(New(KindNotFound, "bucket not found")))

	// Raw storage errors never leak to clients.
	assert.Equal(t, "internal server error", MessageOf(errors.New("connection refused")))

	wrapped := Wrap(KindInternal, "failed to fetch bucket", errors.New("connection refused"))
	assert.Equal(t, "failed to fetch bucket", MessageOf(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInvalidState: http.StatusUnprocessableEntity,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind))
	}
}

func TestIsKind(t *testing.T) {
	err := Newf(KindConflict, "at most %d challenges", 3)
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(nil, KindConflict))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindInternal, "failed", cause)
	assert.True(t, errors.Is(err, cause))
}
