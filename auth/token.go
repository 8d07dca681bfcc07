package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taogames/ticketrelay"
)

const DefaultIssuer = "ticket-relay"

// Claims is the JWT body. UserID falls back to the registered subject.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 bearer tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret []byte, issuer string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &JWTVerifier{secret: secret, issuer: issuer}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, cred ticketrelay.Credential) (ticketrelay.Identity, error) {
	if cred.Token == "" {
		return ticketrelay.Identity{}, fmt.Errorf("%w: token missing", ticketrelay.ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(cred.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return ticketrelay.Identity{}, fmt.Errorf("%w: %v", ticketrelay.ErrUnauthenticated, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return ticketrelay.Identity{}, fmt.Errorf("%w: token has no user", ticketrelay.ErrUnauthenticated)
	}

	return ticketrelay.Identity{ID: userID, Role: roleOrDefault(claims.Role)}, nil
}

// GenerateToken signs a token the verifier built from the same secret and
// issuer will accept.
func GenerateToken(secret []byte, issuer, userID, role string, ttl time.Duration) (string, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
