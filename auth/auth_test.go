package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/taogames/ticketrelay"
)

var secret = []byte("test-secret-that-is-long-enough-2026")

func TestClaimVerifier(t *testing.T) {
	t.Run("should default the role", func(t *testing.T) {
		req := require.New(t)
		id, err := ClaimVerifier{}.Verify(context.Background(), ticketrelay.Credential{UserID: "u1"})
		req.NoError(err)
		req.Equal(ticketrelay.Identity{ID: "u1", Role: DefaultRole}, id)
	})

	t.Run("should keep the given role", func(t *testing.T) {
		id, err := ClaimVerifier{}.Verify(context.Background(), ticketrelay.Credential{UserID: "u1", Role: "agent"})
		require.NoError(t, err)
		require.Equal(t, "agent", id.Role)
	})

	t.Run("should reject a missing userId", func(t *testing.T) {
		req := require.New(t)
		_, err := ClaimVerifier{}.Verify(context.Background(), ticketrelay.Credential{Role: "admin"})
		req.ErrorIs(err, ticketrelay.ErrUnauthenticated)
		req.EqualError(err, "authentication required: userId missing")
	})
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(secret, "")
	require.NoError(t, err)

	t.Run("should accept a token it issued", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(secret, "", "u1", "agent", time.Hour)
		req.NoError(err)

		id, err := v.Verify(context.Background(), ticketrelay.Credential{Token: token})
		req.NoError(err)
		req.Equal(ticketrelay.Identity{ID: "u1", Role: "agent"}, id)
	})

	t.Run("should fall back to subject and default role", func(t *testing.T) {
		req := require.New(t)
		claims := jwt.RegisteredClaims{
			Subject:   "u9",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		req.NoError(err)

		id, err := v.Verify(context.Background(), ticketrelay.Credential{Token: token})
		req.NoError(err)
		req.Equal(ticketrelay.Identity{ID: "u9", Role: DefaultRole}, id)
	})

	rejects := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"missing token", func(t *testing.T) string { return "" }},
		{"garbage", func(t *testing.T) string { return "not.a.jwt" }},
		{"expired", func(t *testing.T) string {
			token, err := GenerateToken(secret, "", "u1", "", -time.Minute)
			require.NoError(t, err)
			return token
		}},
		{"wrong secret", func(t *testing.T) string {
			token, err := GenerateToken([]byte("another-secret-entirely-0000000000"), "", "u1", "", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"wrong issuer", func(t *testing.T) string {
			token, err := GenerateToken(secret, "someone-else", "u1", "", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"no user", func(t *testing.T) string {
			token, err := GenerateToken(secret, "", "", "", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"no expiry", func(t *testing.T) string {
			claims := Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: DefaultIssuer}}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
			require.NoError(t, err)
			return token
		}},
	}

	for _, tt := range rejects {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), ticketrelay.Credential{Token: tt.token(t)})
			require.ErrorIs(t, err, ticketrelay.ErrUnauthenticated)
		})
	}
}

func TestNew(t *testing.T) {
	req := require.New(t)

	v, err := New("", nil, "")
	req.NoError(err)
	req.IsType(ClaimVerifier{}, v)

	v, err = New("jwt", secret, "")
	req.NoError(err)
	req.IsType(&JWTVerifier{}, v)

	_, err = New("jwt", nil, "")
	req.Error(err)

	_, err = New("oauth", nil, "")
	req.Error(err)
}

func TestCredentialFromHandshake(t *testing.T) {
	cred := ticketrelay.CredentialFromHandshake(map[string]interface{}{
		"token":  "Bearer abc",
		"userId": "u1",
		"role":   "agent",
	})
	require.Equal(t, ticketrelay.Credential{Token: "abc", UserID: "u1", Role: "agent"}, cred)
}
