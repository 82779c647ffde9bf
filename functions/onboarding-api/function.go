package onboardingapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/agentflow/onboarding/pkg/api"
	"github.com/agentflow/onboarding/pkg/bootstrap"
	"github.com/agentflow/onboarding/pkg/framework"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
)

var (
	svc     *bootstrap.Service
	handler http.Handler
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.HTTP("OnboardingAPI", OnboardingAPI)
}

func initService(ctx context.Context) (http.Handler, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, "onboarding-api")
		if svcErr != nil {
			return
		}
		server := api.NewServer(svc.Onboarding, svc.Verifier, svc.Logger,
			api.WithMaxUpload(svc.Config.MaxUploadBytes))
		handler = framework.WrapHTTP("onboarding-api", svc.Logger, server.Router())
	})
	return handler, svcErr
}

// OnboardingAPI is the HTTP entry point
func OnboardingAPI(w http.ResponseWriter, r *http.Request) {
	h, err := initService(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "service init failed")
		return
	}
	h.ServeHTTP(w, r)
}
