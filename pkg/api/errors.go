package api

import (
	"errors"
	"net/http"

	"github.com/agentflow/onboarding/pkg/framework"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
	"github.com/agentflow/onboarding/pkg/onboarding"
	"github.com/agentflow/onboarding/pkg/types"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var v *onboarding.ValidationError
	switch {
	case errors.As(err, &v):
		if errors.Is(err, types.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errors.Is(err, onboarding.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, onboarding.ErrApprovalUnavailable):
		return http.StatusServiceUnavailable
	case onboarding.IsStorage(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		framework.Logger(r.Context(), s.logger).Error("Request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	var v *onboarding.ValidationError
	switch {
	case errors.As(err, &v):
		httputil.WriteFieldError(w, status, v.Field, v.Reason)
	case status == http.StatusInternalServerError:
		httputil.WriteError(w, status, "internal error")
	case status == http.StatusBadGateway:
		httputil.WriteError(w, status, "storage unavailable")
	default:
		httputil.WriteError(w, status, err.Error())
	}
}
