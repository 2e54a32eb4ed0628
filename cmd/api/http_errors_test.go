package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cartflow/pkg/cart"
	"cartflow/pkg/logger"
)

func TestHTTPErrorMapping(t *testing.T) {
	log = logger.New(io.Discard, logger.LevelError, "test", nil)

	cases := []struct {
		err  error
		want int
	}{
		{cart.ErrNotAuthorized, http.StatusUnauthorized},
		{cart.ErrForbidden, http.StatusForbidden},
		{cart.ErrOutOfStock, http.StatusConflict},
		{cart.ErrProductNotFound, http.StatusNotFound},
		{cart.ErrItemNotFound, http.StatusNotFound},
		{fmt.Errorf("add %q: %w", "P1", cart.ErrOutOfStock), http.StatusConflict},
		{errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpError(context.Background(), rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}
