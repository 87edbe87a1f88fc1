package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"chatd/internal/codec"
	"chatd/internal/engine"
	"chatd/internal/manager"
	"chatd/internal/session"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", manager.ErrModelNotFound("x"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("ensure: %w", manager.ErrModelNotFound("x")), http.StatusNotFound},
		{"encoding", fmt.Errorf("session: %w", &codec.EncodingError{Len: 3, Err: errors.New("bad")}), http.StatusUnprocessableEntity},
		{"dependency", engine.ErrDependencyUnavailable("no llama"), http.StatusServiceUnavailable},
		{"no model", manager.ErrNoModel, http.StatusServiceUnavailable},
		{"closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"http error", mockHTTPError{msg: "x", code: http.StatusConflict}, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
