// Package api exposes the onboarding service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	shared "github.com/agentflow/onboarding/pkg"
	httputil "github.com/agentflow/onboarding/pkg/infrastructure/http"
	"github.com/agentflow/onboarding/pkg/onboarding"
	"github.com/agentflow/onboarding/pkg/types"
)

const (
	maxJSONBody = 64 << 10
	// multipartOverhead covers form boundaries and headers around the file.
	multipartOverhead = 1 << 20
)

type Server struct {
	svc       *onboarding.Service
	verifier  shared.TokenVerifier
	logger    *slog.Logger
	maxUpload int64
	keepalive time.Duration
}

type Option func(*Server)

func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

func WithKeepalive(d time.Duration) Option {
	return func(s *Server) { s.keepalive = d }
}

func NewServer(svc *onboarding.Service, verifier shared.TokenVerifier, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:       svc,
		verifier:  verifier,
		logger:    logger.With("component", "api"),
		maxUpload: shared.DefaultMaxUploadBytes,
		keepalive: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/pipeline", s.handlePipeline)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/events", s.handleManagerEvents)
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Post("/", s.handleCreateAgent)

			r.Route("/{agentID}", func(r chi.Router) {
				r.Get("/", s.handleGetAgent)
				r.Get("/steps", s.handleListSteps)
				r.Post("/steps/{stepID}/complete", s.handleCompleteStep)
				r.Post("/steps/{stepID}/documents", s.handleUpload)
				r.Get("/documents", s.handleListDocuments)
				r.Get("/documents/{docID}", s.handleReadDocument)
				r.Get("/agreement", s.handleGetAgreement)
				r.Post("/agreement", s.handleSignAgreement)
				r.Post("/approve", s.handleApprove)
				r.Post("/needs-info", s.handleNeedsInfo)
				r.Post("/hold", s.handleHold(true))
				r.Post("/resume", s.handleHold(false))
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Get("/activity", s.handleListActivity)
				r.Get("/events", s.handleAgentEvents)
			})
		})
	})
	return r
}

type actorKey struct{}

func actorFrom(ctx context.Context) types.Actor {
	a, _ := ctx.Value(actorKey{}).(types.Actor)
	return a
}

// authenticate resolves the bearer token to an Actor.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		actor, err := s.verifier.VerifyActor(r.Context(), strings.TrimSpace(token))
		if err != nil {
			s.logger.Debug("Token rejected", "error", err)
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}
