package middleware

import (
	"context"
	"net/http"

	"toohak-backend/internal/config"

	"github.com/MadAppGang/httplog"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

type Middleware func(next http.Handler) http.Handler

// Defaults returns the middlewares applied to every HTTP route, outermost
// last.
func Defaults(cfg config.Config) []Middleware {
	return []Middleware{HTTPLogger(cfg.Debug), CORS(cfg.AllowedOrigins).Handler, RequestIDMiddleware}
}

func CORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
	})
}

// HTTPLogger logs every request, headers and bodies included in debug mode.
func HTTPLogger(debug bool) Middleware {
	if !debug {
		return httplog.LoggerWithConfig(httplog.LoggerConfig{
			RouterName: "Toohak",
			Formatter:  httplog.DefaultLogFormatter,
		})
	}
	return httplog.LoggerWithConfig(httplog.LoggerConfig{
		RouterName: "Toohak",
		Formatter: httplog.ChainLogFormatter(
			httplog.DefaultLogFormatter,
			httplog.RequestHeaderLogFormatter, httplog.RequestBodyLogFormatter,
			httplog.ResponseHeaderLogFormatter, httplog.ResponseBodyLogFormatter),
		CaptureBody: true,
	})
}

type ctxKeyRequestID int

const RequestIDKey ctxKeyRequestID = 0

func RequestIDMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		w.Header().Set("X-Request-ID", requestID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request id stored by RequestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Chain wraps h with mws, the first middleware being the innermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}
