package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchdesk/presence/internal/domain"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)

	token, err := j.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-123"), user)
}

func TestJWTVerifyRejections(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	good, err := j.Issue("user-123")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "tampered", token: good + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Verify(tt.token)
			require.Error(t, err)
		})
	}
}

func TestJWTVerifyWrongSecret(t *testing.T) {
	token, err := NewJWT("secret-a", time.Hour).Issue("user-123")
	require.NoError(t, err)

	_, err = NewJWT("secret-b", time.Hour).Verify(token)
	require.Error(t, err)
}

func TestJWTVerifyExpired(t *testing.T) {
	j := &JWT{secret: []byte("test-secret"), ttl: -time.Minute}
	token, err := j.Issue("user-123")
	require.NoError(t, err)

	_, err = j.Verify(token)
	require.Error(t, err)
}

func TestJWTIssueInvalidIdentity(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	_, err := j.Issue("")
	require.ErrorIs(t, err, domain.ErrUserIDEmpty)
}
