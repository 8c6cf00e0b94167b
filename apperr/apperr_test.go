package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("approve: %w", NotFound("pending loan not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "pending loan not found", PublicMessage(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Internal(cause)

	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Nil(t, Internal(nil))
}

func TestInternalKeepsDomainErrors(t *testing.T) {
	err := Internal(Conflict("item is not available"))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindValidation:      http.StatusBadRequest,
		KindForbidden:       http.StatusForbidden,
		KindUnauthenticated: http.StatusUnauthorized,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestValidationFields(t *testing.T) {
	err := Validation("invalid input", map[string]string{"reason": "required"})
	assert.Equal(t, "required", FieldsOf(err)["reason"])
	assert.Nil(t, FieldsOf(errors.New("x")))
}
