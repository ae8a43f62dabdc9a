package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesField(t *testing.T) {
	e := FieldError("title", "too long")
	assert.Contains(t, e.Error(), "field=title")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, New(NotFound, "nope").HTTPStatus())
	assert.Equal(t, http.StatusConflict, New(InvalidTransition, "bad").HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, New(ResourceExhausted, "full").HTTPStatus())
}

func TestAsIgnoresErrorFlattenedToString(t *testing.T) {
	base := New(NotFound, "missing task")
	wrapped := errors.New("context: " + base.Error())
	_, ok := As(wrapped)
	assert.False(t, ok)

	_, ok = As(base)
	assert.True(t, ok)
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("db down")
	wrapped := Wrap(Unavailable, "connect failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}
