package framework

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/agentflow/onboarding/pkg/bootstrap"
	infrasentry "github.com/agentflow/onboarding/pkg/infrastructure/sentry"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service *bootstrap.Service
	Logger  *slog.Logger
	EventID string
}

// HandlerFunc is the signature for a cloud function handler
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// PubSubMessage is the body of a Pub/Sub push delivered as a CloudEvent.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// WrapCloudEvent wraps a handler with start/finish logging and panic
// capture. The logger comes from the service when one is injected.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) (err error) {
		base := slog.Default()
		if svc != nil && svc.Logger != nil {
			base = svc.Logger
		}
		logger := base.With("service", serviceName, "event_id", e.ID(), "event_type", e.Type())

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				logger.Error("Function panicked", "panic", r)
				infrasentry.CaptureException(err, map[string]interface{}{"service": serviceName, "event_id": e.ID()}, logger)
			}
		}()

		start := time.Now()
		logger.Info("Function started")

		fwCtx := &FrameworkContext{
			Service: svc,
			Logger:  logger,
			EventID: e.ID(),
		}

		outputs, handlerErr := handler(ctx, e, fwCtx)
		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr, "duration_ms", time.Since(start).Milliseconds())
			infrasentry.CaptureException(handlerErr, map[string]interface{}{"service": serviceName, "event_id": e.ID()}, logger)
			return handlerErr
		}

		logger.Info("Function completed successfully", "duration_ms", time.Since(start).Milliseconds(), "outputs", outputs)
		return nil
	}
}

// UnwrapPubSub extracts the CloudEvent our dispatcher published from a
// Pub/Sub push event.
func UnwrapPubSub(e event.Event) (event.Event, error) {
	var msg PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return event.Event{}, fmt.Errorf("decode pubsub envelope: %w", err)
	}
	var inner event.Event
	if err := json.Unmarshal(msg.Message.Data, &inner); err != nil {
		return event.Event{}, fmt.Errorf("decode published event: %w", err)
	}
	return inner, nil
}
