package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

// QueryParam is the fallback location of the credential for clients that
// cannot set headers on a websocket upgrade.
const QueryParam = "access_token"

// LocalValidator adapts an HMACVerifier to repository.TokenValidator.
type LocalValidator struct {
	verifier *HMACVerifier
	logger   *zap.Logger
}

var _ repository.TokenValidator = (*LocalValidator)(nil)

func NewLocalValidator(verifier *HMACVerifier, logger *zap.Logger) *LocalValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalValidator{verifier: verifier, logger: logger}
}

func (v *LocalValidator) ValidateAccessToken(ctx context.Context, token string) result.Result {
	if err := ctx.Err(); err != nil {
		return result.FromError("An error occurred during the validation of the user's token: ", err)
	}

	claims, err := v.verifier.Verify(token)
	switch {
	case err == nil:
		return result.OK("Token is valid", claims.Subject)
	case errors.Is(err, ErrMissingToken):
		return result.Failure(http.StatusUnauthorized, "No token")
	case errors.Is(err, ErrExpiredToken):
		v.logger.Debug("Rejected expired token")
		return result.Failure(http.StatusUnauthorized, "Token expired")
	default:
		v.logger.Debug("Rejected token", zap.Error(err))
		return result.Failure(http.StatusUnauthorized, "Invalid token")
	}
}

// TokenFromRequest returns the bearer credential from the Authorization
// header, falling back to the access_token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryParam))
}

// Authenticate validates token and returns the user id behind it.
// ErrMissingToken is returned for an empty token and ErrInvalidToken for any
// rejection, so callers can pick the matching close reason.
func Authenticate(ctx context.Context, validator repository.TokenValidator, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	r := validator.ValidateAccessToken(ctx, token)
	userID, ok := repository.UserID(r)
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
