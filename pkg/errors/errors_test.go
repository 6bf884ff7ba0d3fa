package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{InvalidCredentials(), http.StatusUnauthorized},
		{InvalidLink(nil), http.StatusUnauthorized},
		{Unauthorized(nil), http.StatusUnauthorized},
		{FileNotFound("a.pdf", nil), http.StatusNotFound},
		{NotFound("patient", nil), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{Forbidden("no"), http.StatusForbidden},
		{InvalidTransition("authenticated", "login"), http.StatusConflict},
		{LookupUnavailable("offline", nil), http.StatusOK},
		{CorruptIdentity("X"), http.StatusInternalServerError},
		{Unavailable("smtp off", nil), http.StatusServiceUnavailable},
		{TooManyRequests(), http.StatusTooManyRequests},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", InvalidCredentials())

	assert.ErrorIs(t, err, InvalidCredentialsErr)
	assert.NotErrorIs(t, err, InvalidLinkErr)

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Invalid Patient ID or PIN.", appErr.Message)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "file \"a.pdf\" not found", FileNotFound("a.pdf", nil).Error())
	assert.Equal(t, "internal server error: boom", Internal(errors.New("boom")).Error())
}
