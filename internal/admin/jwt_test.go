package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken("secret", 60)
	require.NoError(t, err)

	claims, err := ParseToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "lasechat", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := NewToken("secret", 60)
	require.NoError(t, err)

	_, err = ParseToken("other", tok)
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := NewToken("secret", -1)
	require.NoError(t, err)

	_, err = ParseToken("secret", tok)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not-a-token")
	require.Error(t, err)
}
