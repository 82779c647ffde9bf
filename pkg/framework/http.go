package framework

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
	infrasentry "github.com/agentflow/onboarding/pkg/infrastructure/sentry"
)

const RequestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// WrapHTTP logs each request with a request ID and turns panics into a 500
// JSON response reported to Sentry.
func WrapHTTP(serviceName string, logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)

		reqLogger := logger.With("service", serviceName, "request_id", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("panic: %v", p)
				reqLogger.Error("Request panicked", "panic", p, "method", r.Method, "path", r.URL.Path)
				infrasentry.CaptureException(err, map[string]interface{}{"request_id": reqID, "path": r.URL.Path}, reqLogger)
				httputil.WriteError(rec, http.StatusInternalServerError, "internal error")
			}
			level := slog.LevelInfo
			if rec.status >= 500 {
				level = slog.LevelError
			}
			reqLogger.Log(r.Context(), level, "Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), reqLogger)))
	})
}
