package ticketrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:generate mockgen -source=identity.go -destination=mock_verifier_test.go -package=ticketrelay

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrHubClosed           = errors.New("hub closed")
	ErrDuplicateConnection = errors.New("connection id already registered")
)

// Identity is the authenticated party behind a connection. Role is carried
// for consumers and never enforced here.
type Identity struct {
	ID   string `json:"userId"`
	Role string `json:"role"`
}

// Caller binds one live connection to the identity it authenticated as.
// Every inbound event is routed together with its Caller.
type Caller struct {
	ConnID   string
	Identity Identity
}

// Credential is whatever the client put in the socket.io handshake auth
// object. Token is a bearer token; UserID and Role form the inline claim.
type Credential struct {
	Token  string
	UserID string
	Role   string
}

// Verifier resolves a credential into an Identity. It runs before anything
// about the connection is recorded and is the only way in.
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (Identity, error)
}

type VerifierFunc func(ctx context.Context, cred Credential) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, cred Credential) (Identity, error) {
	return f(ctx, cred)
}

// CredentialFromHandshake reads the handshake auth object. Values that are
// neither strings nor numbers are ignored.
func CredentialFromHandshake(auth map[string]interface{}) Credential {
	cred := Credential{
		Token:  handshakeString(auth, "token"),
		UserID: handshakeString(auth, "userId"),
		Role:   handshakeString(auth, "role"),
	}
	cred.Token = strings.TrimSpace(strings.TrimPrefix(cred.Token, "Bearer "))
	return cred
}

func handshakeString(auth map[string]interface{}, key string) string {
	switch v := auth[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
