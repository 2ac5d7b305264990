package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/content"
)

func TestAuthService_RoundTrip(t *testing.T) {
	service := NewAuthService("test-secret-key", time.Hour)

	token, err := service.GenerateToken(&content.Actor{ID: 42, Name: "Ada", Email: "ada@example.com", Role: "editor"})
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	actor, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &content.Actor{ID: 42, Name: "Ada", Email: "ada@example.com", Role: "editor"}, actor)
}

func TestAuthService_GenerateRequiresID(t *testing.T) {
	service := NewAuthService("test-secret-key", time.Hour)

	_, err := service.GenerateToken(nil)
	assert.Error(t, err)
	_, err = service.GenerateToken(&content.Actor{Name: "nobody"})
	assert.Error(t, err)
}

func TestAuthService_ValidateToken(t *testing.T) {
	service := NewAuthService("test-secret-key", time.Hour)
	valid, err := service.GenerateToken(&content.Actor{ID: 1})
	require.NoError(t, err)

	expired := NewAuthService("test-secret-key", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken(&content.Actor{ID: 1})
	require.NoError(t, err)

	otherKey, err := NewAuthService("other-secret", time.Hour).GenerateToken(&content.Actor{ID: 1})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "1"}).
		SignedString([]byte("test-secret-key"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ada"}).
		SignedString([]byte("test-secret-key"))
	require.NoError(t, err)

	_, err = service.ValidateToken(valid)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"expired", expiredToken},
		{"wrong key", otherKey},
		{"alg none", none},
		{"alg hs512", hs512},
		{"non numeric subject", badSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
