package identity

import (
	"context"
	"strings"

	"github.com/agentflow/onboarding/pkg/types"
)

// DevVerifier accepts unsigned "uid:role[:approver]" tokens. It is only
// wired when the server runs on the in-memory store.
type DevVerifier struct{}

func (DevVerifier) VerifyActor(ctx context.Context, idToken string) (types.Actor, error) {
	parts := strings.Split(idToken, ":")
	if parts[0] == "" {
		return types.Actor{}, ErrUnauthenticated
	}
	claims := map[string]interface{}{}
	if len(parts) > 1 {
		claims[ClaimRole] = parts[1]
	}
	if len(parts) > 2 && parts[2] == ClaimApprover {
		claims[ClaimApprover] = true
	}
	return ActorFromClaims(parts[0], claims), nil
}
