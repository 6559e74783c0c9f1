package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giygas/labref-api/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.RemoteAddr))
})

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"single forwarded IP", "203.0.113.1", "192.168.1.1:12345", "203.0.113.1"},
		{"first of a proxy chain", "203.0.113.7, 10.0.0.2, 10.0.0.3", "10.0.0.3:443", "203.0.113.7"},
		{"port stripped without proxy", "", "192.168.1.1:12345", "192.168.1.1"},
		{"bare address kept", "", "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/studies", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rr := httptest.NewRecorder()
			RealIPMiddleware(okHandler).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Body.String())
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		remoteAddr  string
		header      string
		allowDirect bool
		want        int
	}{
		{"localhost IPv4", "127.0.0.1:12345", "", false, http.StatusOK},
		{"localhost IPv6", "[::1]:12345", "", false, http.StatusOK},
		{"direct access", "192.168.1.1:12345", "", false, http.StatusForbidden},
		{"forwarded by proxy", "192.168.1.1:12345", "X-Forwarded-For", false, http.StatusOK},
		{"real IP from proxy", "192.168.1.1:12345", "X-Real-IP", false, http.StatusOK},
		{"direct access allowed", "192.168.1.1:12345", "", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/biomaterials", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.header != "" {
				req.Header.Set(tt.header, "203.0.113.1")
			}
			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(tt.allowDirect)(okHandler).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rr.Body.String(), "Direct access not allowed")
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 1 << 20, MaxHeaderSize: 1 << 10}

	tests := []struct {
		name          string
		contentLength string
		header        string
		want          int
	}{
		{"no content length", "", "", http.StatusOK},
		{"exactly the limit", "1048576", "", http.StatusOK},
		{"over the limit", "2000000", "", http.StatusRequestEntityTooLarge},
		{"negative length ignored", "-100", "", http.StatusOK},
		{"headers too large", "", strings.Repeat("h", 2048), http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/biomaterials/venous_blood/check", nil)
			if tt.contentLength != "" {
				req.Header.Set("Content-Length", tt.contentLength)
			}
			if tt.header != "" {
				req.Header.Set("X-Padding", tt.header)
			}
			rr := httptest.NewRecorder()
			RequestSizeMiddleware(cfg)(okHandler).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
