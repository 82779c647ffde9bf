package notificationsender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/bootstrap"
	"github.com/agentflow/onboarding/pkg/framework"
	"github.com/agentflow/onboarding/pkg/infrastructure/database"
	"github.com/agentflow/onboarding/pkg/infrastructure/notifications"
)

var (
	svc     *bootstrap.Service
	sender  *Sender
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("SendOnboardingNotification", SendOnboardingNotification)
}

func initService(ctx context.Context) (*bootstrap.Service, *Sender, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, "notification-sender")
		if svcErr != nil {
			return
		}
		if svc.Firestore == nil || svc.Firebase == nil {
			svcErr = errors.New("notification-sender requires STORE=firestore")
			return
		}
		fcm, err := notifications.NewFCMAdapter(ctx, svc.Firebase, svc.Firestore, svc.Logger)
		if err != nil {
			svcErr = err
			return
		}
		sender = &Sender{
			Tokens: database.NewFirestoreAdapter(svc.Firestore),
			Push:   fcm,
		}
	})
	return svc, sender, svcErr
}

// SendOnboardingNotification is the entry point
func SendOnboardingNotification(ctx context.Context, e cloudevents.Event) error {
	svc, sender, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("notification-sender", svc, sender.Handle)(ctx, e)
}

// TokenSource resolves a user's registered device tokens.
type TokenSource interface {
	GetDeviceTokens(ctx context.Context, userID string) ([]string, error)
}

type Sender struct {
	Tokens TokenSource
	Push   shared.NotificationService
}

// Handle renders one dispatched onboarding notification and pushes it to
// every recipient. A recipient failure does not stop the others.
func (s *Sender) Handle(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	inner := e
	if !strings.HasPrefix(e.Type(), shared.CloudEventTypePrefix) {
		unwrapped, err := framework.UnwrapPubSub(e)
		if err != nil {
			return nil, err
		}
		inner = unwrapped
	}

	name, ok := strings.CutPrefix(inner.Type(), shared.CloudEventTypePrefix)
	if !ok {
		fwCtx.Logger.Warn("Ignoring foreign event", "type", inner.Type())
		return map[string]interface{}{"status": "skipped"}, nil
	}

	var payload map[string]interface{}
	if err := inner.DataAs(&payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}

	pushes := notifications.Compose(name, payload)
	if len(pushes) == 0 {
		fwCtx.Logger.Debug("No recipients for notification", "type", name)
		return map[string]interface{}{"status": "skipped"}, nil
	}

	var errs []error
	sent := 0
	for _, p := range pushes {
		logger := fwCtx.Logger.With("user_id", p.UserID, "type", name)
		tokens, err := s.Tokens.GetDeviceTokens(ctx, p.UserID)
		if err != nil {
			logger.Error("Token lookup failed", "error", err)
			errs = append(errs, err)
			continue
		}
		if err := s.Push.SendPushNotification(ctx, p.UserID, p.Title, p.Body, tokens, p.Data); err != nil {
			logger.Error("Push failed", "error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}

	return map[string]interface{}{"status": "sent", "recipients": sent}, errors.Join(errs...)
}
