package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/getsentry/sentry-go"

	shared "github.com/agentflow/onboarding/pkg"
	infrasentry "github.com/agentflow/onboarding/pkg/infrastructure/sentry"
)

// FCMAdapter sends push notifications to the devices registered on a user
// profile and prunes tokens FCM reports as unregistered.
type FCMAdapter struct {
	client *messaging.Client
	fs     *firestore.Client
	logger *slog.Logger
}

func NewFCMAdapter(ctx context.Context, app *firebase.App, fs *firestore.Client, logger *slog.Logger) (*FCMAdapter, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMAdapter{client: client, fs: fs, logger: logger.With("component", "fcm")}, nil
}

func (a *FCMAdapter) SendPushNotification(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error {
	if len(tokens) == 0 {
		a.logger.Debug("No tokens for user, skipping notification", "user_id", userID)
		return nil
	}

	a.logger.Info("Sending push notification", "user_id", userID, "token_count", len(tokens), "title", title)

	response, err := a.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to send multicast message: %w", err)
	}

	if response.FailureCount > 0 {
		a.logger.Warn("Some push notifications failed to send",
			"user_id", userID,
			"failure_count", response.FailureCount,
			"success_count", response.SuccessCount,
		)
		infrasentry.CaptureMessage("Push notification partially failed", sentry.LevelWarning, map[string]interface{}{
			"user_id":       userID,
			"failure_count": response.FailureCount,
		}, a.logger)
		a.pruneTokens(ctx, userID, tokens, response.Responses)
	}

	return nil
}

// pruneTokens removes tokens that returned NotRegistered from the user profile.
func (a *FCMAdapter) pruneTokens(ctx context.Context, userID string, tokens []string, responses []*messaging.SendResponse) {
	dead := deadTokens(tokens, responses, messaging.IsRegistrationTokenNotRegistered)
	if len(dead) == 0 {
		return
	}

	a.logger.Info("Removing dead FCM tokens", "user_id", userID, "count", len(dead))
	_, err := a.fs.Collection(shared.CollectionUsers).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "fcm_tokens", Value: firestore.ArrayRemove(dead...)},
	})
	if err != nil {
		a.logger.Error("Failed to remove dead FCM tokens", "user_id", userID, "error", err)
	}
}

func deadTokens(tokens []string, responses []*messaging.SendResponse, isDead func(error) bool) []interface{} {
	var dead []interface{}
	for i, resp := range responses {
		if i < len(tokens) && resp != nil && resp.Error != nil && isDead(resp.Error) {
			dead = append(dead, tokens[i])
		}
	}
	return dead
}
