package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealthHandler_Check(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantOK     bool
	}{
		{"healthy", nil, http.StatusOK, true},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/healthz", NewHealthHandler(stubPinger{err: tt.err}, nil).Check)

			w := performRequest(router, "GET", "/healthz", nil)

			resp := parseResponse(t, w)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOK, resp.Success)
		})
	}
}
