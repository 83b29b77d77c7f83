package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/result"
)

var fixedNow = time.Unix(1700000000, 0)

func newVerifier(t *testing.T, leeway time.Duration) *HMACVerifier {
	t.Helper()
	v, err := NewHMACVerifier("secret", leeway)
	require.NoError(t, err)
	return v.WithClock(func() time.Time { return fixedNow })
}

func makeToken(t *testing.T, secret string, method jwt.SigningMethod, subject string, expires time.Time) string {
	t.Helper()
	return signClaims(t, secret, method, jwt.MapClaims{
		"sub": subject,
		"exp": expires.Unix(),
		"iat": expires.Add(-time.Minute).Unix(),
	})
}

func signClaims(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	var key any = []byte(secret)
	if method == jwt.SigningMethodNone {
		key = jwt.UnsafeAllowNoneSignatureType
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier("  ", time.Second)
	assert.Error(t, err)
}

func TestVerifyValidToken(t *testing.T) {
	v := newVerifier(t, time.Second)
	token := makeToken(t, "secret", jwt.SigningMethodHS256, "alice", fixedNow.Add(30*time.Second))

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.True(t, claims.ExpiresAt.After(fixedNow))
}

func TestVerifyRejections(t *testing.T) {
	v := newVerifier(t, 0)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"not three parts", "abc.def", ErrInvalidToken},
		{"bad signature", makeToken(t, "other", jwt.SigningMethodHS256, "alice", fixedNow.Add(time.Minute)), ErrInvalidToken},
		{"unsigned", makeToken(t, "secret", jwt.SigningMethodNone, "alice", fixedNow.Add(time.Minute)), ErrInvalidToken},
		{"wrong algorithm", makeToken(t, "secret", jwt.SigningMethodHS512, "alice", fixedNow.Add(time.Minute)), ErrInvalidToken},
		{"no expiry", signClaims(t, "secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}), ErrInvalidToken},
		{"no subject", makeToken(t, "secret", jwt.SigningMethodHS256, "", fixedNow.Add(time.Minute)), ErrInvalidToken},
		{"expired", makeToken(t, "secret", jwt.SigningMethodHS256, "alice", fixedNow.Add(-time.Second)), ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyLeeway(t *testing.T) {
	token := makeToken(t, "secret", jwt.SigningMethodHS256, "alice", fixedNow.Add(-2*time.Second))

	_, err := newVerifier(t, 5*time.Second).Verify(token)
	assert.NoError(t, err)

	_, err = newVerifier(t, time.Second).Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSignRoundTrip(t *testing.T) {
	v := newVerifier(t, 0).WithAudience("parley")

	token, err := v.Sign("bob", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, "parley", claims.Audience)
	assert.Equal(t, fixedNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, fixedNow.Unix(), claims.IssuedAt.Unix())

	other := newVerifier(t, 0).WithAudience("elsewhere")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Sign("", time.Hour)
	assert.Error(t, err)
	_, err = v.Sign("bob", 0)
	assert.Error(t, err)
}

func TestVerifyAudienceList(t *testing.T) {
	v := newVerifier(t, 0).WithAudience("parley")
	claims := jwt.MapClaims{
		"sub": "erin",
		"exp": fixedNow.Add(time.Minute).Unix(),
		"aud": []string{"billing", "parley"},
	}

	got, err := v.Verify(signClaims(t, "secret", jwt.SigningMethodHS256, claims))
	require.NoError(t, err)
	assert.Equal(t, "erin", got.Subject)
	assert.Equal(t, "parley", got.Audience)
	assert.True(t, got.IssuedAt.IsZero())

	claims["aud"] = []string{"billing"}
	_, err = v.Verify(signClaims(t, "secret", jwt.SigningMethodHS256, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Without a configured audience any audience is accepted.
	got, err = newVerifier(t, 0).Verify(signClaims(t, "secret", jwt.SigningMethodHS256, claims))
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Audience)
}

func TestLocalValidator(t *testing.T) {
	v := newVerifier(t, 0)
	validator := NewLocalValidator(v, zap.NewNop())
	ctx := context.Background()

	token, err := v.Sign("carol", time.Minute)
	require.NoError(t, err)

	r := validator.ValidateAccessToken(ctx, token)
	require.True(t, r.IsSuccess())
	assert.JSONEq(t, `"carol"`, string(r.Data))

	r = validator.ValidateAccessToken(ctx, "garbage")
	assert.Equal(t, result.Failure(http.StatusUnauthorized, "Invalid token"), r)

	r = validator.ValidateAccessToken(ctx, "")
	assert.Equal(t, http.StatusUnauthorized, r.Status)
	assert.Equal(t, "No token", r.Message)

	expired := makeToken(t, "secret", jwt.SigningMethodHS256, "carol", fixedNow.Add(-time.Minute))
	assert.Equal(t, "Token expired", validator.ValidateAccessToken(ctx, expired).Message)
}

func TestAuthenticate(t *testing.T) {
	v := newVerifier(t, 0)
	validator := NewLocalValidator(v, nil)
	ctx := context.Background()

	token, err := v.Sign("dave", time.Minute)
	require.NoError(t, err)

	userID, err := Authenticate(ctx, validator, token)
	require.NoError(t, err)
	assert.Equal(t, "dave", userID)

	_, err = Authenticate(ctx, validator, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = Authenticate(ctx, validator, "x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?access_token=fromquery", nil)
	assert.Equal(t, "fromquery", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer fromheader")
	assert.Equal(t, "fromheader", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "fromquery", TokenFromRequest(r))

	assert.Empty(t, TokenFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}
