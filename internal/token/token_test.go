package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestBuildParseRoundTrip(t *testing.T) {
	signed, err := Build(testSecret, 17, "MANAGER")
	require.NoError(t, err)

	claims, err := Parse(testSecret, signed)
	require.NoError(t, err)
	assert.Equal(t, 17, claims.StaffID)
	assert.Equal(t, "MANAGER", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseWrongSecret(t *testing.T) {
	signed, err := Build(testSecret, 17, "CASHIER")
	require.NoError(t, err)

	_, err = Parse("another-secret", signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse(testSecret, "not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUniqueTokenIDs(t *testing.T) {
	first, err := Build(testSecret, 1, "CASHIER")
	require.NoError(t, err)
	second, err := Build(testSecret, 1, "CASHIER")
	require.NoError(t, err)

	firstClaims, err := Parse(testSecret, first)
	require.NoError(t, err)
	secondClaims, err := Parse(testSecret, second)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}
