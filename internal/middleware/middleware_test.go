package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"toohak-backend/internal/config"
	"toohak-backend/internal/middleware"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "Generated"},
		{name: "Forwarded", header: "my-request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := middleware.RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = middleware.RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			res := httptest.NewRecorder()
			h.ServeHTTP(res, req)

			if got == "" {
				t.Fatal("request id missing from context")
			}
			if tt.header != "" && got != tt.header {
				t.Errorf("request id: got %q, want %q", got, tt.header)
			}
			if h := res.Header().Get("X-Request-ID"); h != got {
				t.Errorf("response header: got %q, want %q", h, got)
			}
		})
	}
}

func TestChainCORS(t *testing.T) {
	cfg := config.Config{AllowedOrigins: []string{"http://quiz.test"}}
	h := middleware.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), middleware.Defaults(cfg)...)

	tests := []struct {
		origin string
		want   string
	}{
		{origin: "http://quiz.test", want: "http://quiz.test"},
		{origin: "http://evil.test", want: ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", tt.origin)
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)

		if got := res.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: got allow origin %q, want %q", tt.origin, got, tt.want)
		}
		if res.Header().Get("X-Request-ID") == "" {
			t.Errorf("origin %s: missing request id", tt.origin)
		}
	}
}
