// Package onboarding implements the agent contracting workflow: step
// completion, automatic stage advancement, document collection, the
// approval gate, the activity log, per-agent messaging and needs-info
// requests.
//
// Primary state (agent row, step records, documents, messages) is written
// first. The activity log, notifications and live events are dispatched
// afterwards and their failures are logged, never returned.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

const (
	maxCASAttempts = 5
	notifyTimeout  = 10 * time.Second
)

// ErrorReporter forwards swallowed errors to an error tracker.
type ErrorReporter func(err error, context map[string]interface{})

type Options struct {
	Store      shared.Store
	Blobs      shared.BlobStore
	Dispatcher shared.Dispatcher
	// Identity is the privileged admin client. Without it ApproveAgent is
	// unavailable.
	Identity       shared.IdentityAdmin
	Registry       *pipeline.Registry
	Hub            *eventbus.Hub
	Logger         *slog.Logger
	Reporter       ErrorReporter
	MaxUploadBytes int64
	Clock          func() time.Time
	IDGenerator    func() string
}

type Service struct {
	store     shared.Store
	blobs     shared.BlobStore
	dispatch  shared.Dispatcher
	identity  shared.IdentityAdmin
	registry  *pipeline.Registry
	hub       *eventbus.Hub
	logger    *slog.Logger
	report    ErrorReporter
	maxUpload int64
	now       func() time.Time
	newID     func() string

	pending sync.WaitGroup
}

func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("onboarding: store is required")
	}
	s := &Service{
		store:     opts.Store,
		blobs:     opts.Blobs,
		dispatch:  opts.Dispatcher,
		identity:  opts.Identity,
		registry:  opts.Registry,
		hub:       opts.Hub,
		logger:    opts.Logger,
		report:    opts.Reporter,
		maxUpload: opts.MaxUploadBytes,
		now:       opts.Clock,
		newID:     opts.IDGenerator,
	}
	if s.registry == nil {
		s.registry = pipeline.Default()
	}
	if s.hub == nil {
		s.hub = eventbus.NewHub()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "onboarding")
	if s.maxUpload <= 0 {
		s.maxUpload = shared.DefaultMaxUploadBytes
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

func (s *Service) Registry() *pipeline.Registry { return s.registry }

func (s *Service) Hub() *eventbus.Hub { return s.hub }

// Wait blocks until in-flight notifications have been handed off.
func (s *Service) Wait() {
	s.pending.Wait()
}

// loadAgent maps a missing agent to a ValidationError and any other read
// failure to a StorageError.
func (s *Service) loadAgent(ctx context.Context, agentID string) (*types.Agent, error) {
	if agentID == "" {
		return nil, invalid("agentId", "required")
	}
	agent, err := s.store.GetAgent(ctx, agentID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, unknownAgent(agentID)
	}
	if err != nil {
		return nil, storageErr("get agent", err)
	}
	return agent, nil
}

// authorize enforces visibility: agents see themselves, managers see the
// agents they manage, admins see everyone.
func authorize(actor types.Actor, agent *types.Agent) error {
	switch actor.Role {
	case types.RoleAdmin:
		return nil
	case types.RoleManager:
		if agent.ManagerID == actor.ID {
			return nil
		}
	case types.RoleAgent:
		if agent.ID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

func (s *Service) publish(t eventbus.EventType, agent *types.Agent, data interface{}) {
	s.hub.Publish(eventbus.Event{
		Type:      t,
		AgentID:   agent.ID,
		ManagerID: agent.ManagerID,
		Data:      data,
		At:        s.now(),
	})
}

// notify hands a notification to the dispatcher on a detached goroutine. The
// caller's cancellation does not abort delivery.
func (s *Service) notify(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.dispatch == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.swallow(fmt.Errorf("notification panic: %v", r), "notify", map[string]interface{}{"event_type": eventType})
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.dispatch.Send(sendCtx, eventType, payload); err != nil {
			s.swallow(err, "notify", map[string]interface{}{"event_type": eventType, "agent_id": payload["agentId"]})
		}
	}()
}

// swallow logs and reports a failure that must not affect the caller.
func (s *Service) swallow(err error, op string, fields map[string]interface{}) {
	args := []any{"op", op, "error", err}
	for k, v := range fields {
		args = append(args, k, v)
	}
	s.logger.Warn("Side-channel failure ignored", args...)
	if s.report != nil {
		ctx := map[string]interface{}{"op": op}
		for k, v := range fields {
			ctx[k] = v
		}
		s.report(err, ctx)
	}
}
