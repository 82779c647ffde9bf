package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"github.com/agentflow/onboarding/pkg/types"
)

// Custom claims set on staff accounts.
const (
	ClaimRole     = "role"
	ClaimApprover = "approver"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// FirebaseAdmin toggles account login through the Admin SDK. The app it is
// built from must carry the privileged service-account credential.
type FirebaseAdmin struct {
	client *auth.Client
}

func NewFirebaseAdmin(ctx context.Context, app *firebase.App) (*FirebaseAdmin, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return &FirebaseAdmin{client: client}, nil
}

func (a *FirebaseAdmin) SetLoginActive(ctx context.Context, accountID string, active bool) error {
	params := (&auth.UserToUpdate{}).Disabled(!active)
	if _, err := a.client.UpdateUser(ctx, accountID, params); err != nil {
		return fmt.Errorf("update user %s: %w", accountID, err)
	}
	return nil
}

// FirebaseVerifier resolves a request's ID token to an Actor.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyActor(ctx context.Context, idToken string) (types.Actor, error) {
	if idToken == "" {
		return types.Actor{}, ErrUnauthenticated
	}
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return types.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return ActorFromClaims(token.UID, token.Claims), nil
}

// ActorFromClaims builds an Actor from verified token claims. Accounts
// without a recognised role claim are agents.
func ActorFromClaims(uid string, claims map[string]interface{}) types.Actor {
	actor := types.Actor{ID: uid, Role: types.RoleAgent}
	switch role, _ := claims[ClaimRole].(string); types.Role(role) {
	case types.RoleManager:
		actor.Role = types.RoleManager
	case types.RoleAdmin:
		actor.Role = types.RoleAdmin
	}
	if approver, _ := claims[ClaimApprover].(bool); approver && actor.IsStaff() {
		actor.CanApprove = true
	}
	return actor
}
