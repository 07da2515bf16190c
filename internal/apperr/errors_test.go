package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCategory(t *testing.T) {
	err := New(Conflict, "number already exists")
	assert.True(t, IsCategory(err, Conflict))
	assert.False(t, IsCategory(err, ValidationFailed))
	assert.False(t, IsCategory(nil, Conflict))
	assert.False(t, IsCategory(fmt.Errorf("plain"), Conflict))

	// обёрнутая ошибка тоже распознаётся
	wrapped := fmt.Errorf("insert work_order: %w", err)
	assert.True(t, IsCategory(wrapped, Conflict))
}

func TestPermissionBatch(t *testing.T) {
	e := Permission("create", []string{"amount", "status"})
	assert.Equal(t, PermissionDenied, e.Category)
	assert.Equal(t, []string{"amount", "status"}, e.Details["fields"])
	assert.Empty(t, e.Field, "несколько полей — без привязки к одному")

	single := Permission("create", []string{"status"})
	assert.Equal(t, "status", single.Field)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Category]int{
		PermissionDenied:   403,
		ValidationFailed:   400,
		Conflict:           409,
		DeleteBlocked:      409,
		NotFound:           404,
		NotFoundReference:  422,
		ConfigurationError: 500,
	}
	for cat, want := range cases {
		assert.Equal(t, want, New(cat, "x").HTTPStatus(), string(cat))
	}
}
