package auth

import (
	"context"
	"fmt"

	"github.com/taogames/ticketrelay"
)

const DefaultRole = "user"

// ClaimVerifier trusts the userId and role the client sends. Only for
// deployments where the relay sits behind something that already
// authenticated the user.
type ClaimVerifier struct{}

func (ClaimVerifier) Verify(_ context.Context, cred ticketrelay.Credential) (ticketrelay.Identity, error) {
	if cred.UserID == "" {
		return ticketrelay.Identity{}, fmt.Errorf("%w: userId missing", ticketrelay.ErrUnauthenticated)
	}
	return ticketrelay.Identity{ID: cred.UserID, Role: roleOrDefault(cred.Role)}, nil
}

func roleOrDefault(role string) string {
	if role == "" {
		return DefaultRole
	}
	return role
}

// New picks a verifier by mode name: "claim" or "jwt".
func New(mode string, secret []byte, issuer string) (ticketrelay.Verifier, error) {
	switch mode {
	case "", "claim":
		return ClaimVerifier{}, nil
	case "jwt":
		v, err := NewJWTVerifier(secret, issuer)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
