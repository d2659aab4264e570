package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindCapacity, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestAsWrapsForeignErrors(t *testing.T) {
	ae := As(errors.New("boom"))
	assert.Equal(t, KindInternal, ae.Kind)
	assert.Equal(t, "something went wrong", ae.Message)
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("register: %w", Full())
	assert.Equal(t, KindCapacity, KindOf(err))
	assert.True(t, Is(err, KindCapacity))
	assert.False(t, Is(err, KindConflict))
}

func TestConflictAndCapacityAreDistinguishable(t *testing.T) {
	assert.NotEqual(t, AlreadyRegistered().Code, Full().Code)
	assert.Equal(t, HTTPStatus(AlreadyRegistered().Kind), HTTPStatus(Full().Kind))
}

func TestForbiddenKeepsReasonOutOfMessage(t *testing.T) {
	e := Forbidden("not owner")
	assert.Equal(t, "not authorized", e.Message)
	assert.Contains(t, e.Error(), "not owner")
}
