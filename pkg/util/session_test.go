package util

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-session-testing"

func TestNewSessionID(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()

	assert.True(t, strings.HasPrefix(a, "anon_"))
	assert.NotEqual(t, a, b)
	assert.True(t, IsSessionID(a))
	assert.False(t, IsSessionID("anon_not-a-uuid"))
	assert.False(t, IsSessionID("user_42"))
}

func TestValidateSessionToken(t *testing.T) {
	sessionID := NewSessionID()
	token, err := GenerateSessionToken(sessionID, testSecret, 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{
			name:   "Valid token",
			token:  token,
			secret: testSecret,
		},
		{
			name:    "Invalid secret",
			token:   token,
			secret:  "wrong-secret",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "Invalid token format",
			token:   "invalid.token.format",
			secret:  testSecret,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "Empty token",
			token:   "",
			secret:  testSecret,
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateSessionToken(tt.token, tt.secret)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
			} else {
				require.NoError(t, err)
				require.NotNil(t, claims)
				assert.Equal(t, sessionID, claims.SessionID)
				assert.Nil(t, claims.ExpiresAt)
			}
		})
	}
}

func TestExpiredSessionToken(t *testing.T) {
	token, err := GenerateSessionToken(NewSessionID(), testSecret, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	claims, err := ValidateSessionToken(token, testSecret)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestGenerateOrderNumber(t *testing.T) {
	for i := 0; i < 50; i++ {
		number := GenerateOrderNumber()
		require.Len(t, number, 7)
		assert.Equal(t, byte('#'), number[0])
		assert.NotEqual(t, byte('0'), number[1])
	}
}

func TestAPIKeyHash(t *testing.T) {
	hash, err := HashAPIKey("s3cret-admin")
	require.NoError(t, err)

	assert.True(t, VerifyAPIKey(hash, "s3cret-admin"))
	assert.False(t, VerifyAPIKey(hash, "guess"))
	assert.False(t, VerifyAPIKey("", "s3cret-admin"))
}
