package auth

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "orderbridge"}

func mustVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testJWT)
	require.NoError(t, err)
	return v
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims AccessTokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(role enums.Role, ttl time.Duration) AccessTokenClaims {
	now := time.Now()
	return AccessTokenClaims{
		Role:  role,
		Email: "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testJWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestVerify(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testJWT.Secret), validClaims(enums.RoleAdmin, time.Hour))

	claims, err := mustVerifier(t).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestVerifyRejectsExpired(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testJWT.Secret), validClaims(enums.RoleAdmin, -time.Minute))
	_, err := mustVerifier(t).Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsWrongIssuerAndSecret(t *testing.T) {
	claims := validClaims(enums.RoleCustomer, time.Hour)
	claims.Issuer = "someone-else"
	_, err := mustVerifier(t).Verify(sign(t, jwt.SigningMethodHS256, []byte(testJWT.Secret), claims))
	require.Error(t, err)

	_, err = mustVerifier(t).Verify(sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims(enums.RoleAdmin, time.Hour)))
	require.Error(t, err)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testJWT.Secret), validClaims(enums.Role("superuser"), time.Hour))
	_, err := mustVerifier(t).Verify(token)
	require.Error(t, err)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{})
	require.Error(t, err)
}

func TestVerifyRejectsNoneAndOtherAlgorithms(t *testing.T) {
	none := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(enums.RoleAdmin, time.Hour))
	_, err := mustVerifier(t).Verify(none)
	require.Error(t, err)

	hs512 := sign(t, jwt.SigningMethodHS512, []byte(testJWT.Secret), validClaims(enums.RoleAdmin, time.Hour))
	_, err = mustVerifier(t).Verify(hs512)
	require.Error(t, err)
}

func TestVerifyRequiresSubject(t *testing.T) {
	claims := validClaims(enums.RoleAdmin, time.Hour)
	claims.Subject = ""
	_, err := mustVerifier(t).Verify(sign(t, jwt.SigningMethodHS256, []byte(testJWT.Secret), claims))
	require.ErrorContains(t, err, "subject")
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{UserID: "ops-1", Role: enums.RoleAdmin})
	actor, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "ops-1", actor.UserID)
	assert.Equal(t, enums.RoleAdmin, actor.Role)
}
