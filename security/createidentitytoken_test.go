package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "IxrAjDoa2FqElO7IhrSrUJELhUckePEPVpaePlS/Xaw="

func TestCreateAndParseIdentityToken(t *testing.T) {
	token, err := CreateIdentityToken(&Operator{UserID: 5, UserName: "ops", Provider: "local", Email: "ops@example.com"}, testSecret, time.Hour)
	require.NoError(t, err)

	secret, err := DecodeSecret(testSecret)
	require.NoError(t, err)
	claims, err := ParseIdentityToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, 5, claims.UserID)
	assert.Equal(t, "ops", claims.Subject)
}

func TestParseIdentityTokenRejects(t *testing.T) {
	secret, err := DecodeSecret(testSecret)
	require.NoError(t, err)

	expired, err := CreateIdentityToken(&Operator{UserID: 1, UserName: "ops"}, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseIdentityToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := CreateIdentityToken(&Operator{UserID: 1, UserName: "ops"}, "c2Vjb25kLXNlY3JldA==", time.Hour)
	require.NoError(t, err)
	_, err = ParseIdentityToken(other, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestDecodeSecret(t *testing.T) {
	_, err := DecodeSecret("")
	assert.Error(t, err)
	_, err = DecodeSecret("not base64!")
	assert.Error(t, err)
}
