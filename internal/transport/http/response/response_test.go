package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: ErrBadRequest, want: http.StatusBadRequest},
		{err: errs.ErrInvalidMessage, want: http.StatusBadRequest},
		{err: errs.ErrInvalidTransition, want: http.StatusConflict},
		{err: errs.ErrUpdateInProgress, want: http.StatusConflict},
		{err: errs.ErrUnauthorized, want: http.StatusForbidden},
		{err: errs.ErrNotFound, want: http.StatusNotFound},
		{err: errs.ErrRemoteRejected, want: http.StatusConflict},
		{err: errs.ErrRateLimited, want: http.StatusTooManyRequests},
		{err: errs.ErrNetworkFailure, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("failed to do the thing: %w", tt.err)
		assert.Equal(t, tt.want, StatusFor(wrapped), tt.err.Error())
	}
}
