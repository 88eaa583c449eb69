package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roomcast/domain"
	"roomcast/errors"
	"roomcast/repositories"
)

// Authenticator resolves a bearer credential to a Principal. Token
// signature and expiry checks alone are not enough: the referenced user is
// re-read from storage so a deleted account or a changed role set takes
// effect on the next connection, not on token expiry.
type Authenticator struct {
	tokens  *TokenManager
	users   repositories.IUserRepository
	timeout time.Duration
	log     *slog.Logger
}

func NewAuthenticator(tokens *TokenManager, users repositories.IUserRepository,
	timeout time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, timeout: timeout, log: log}
}

// Authenticate extracts a token from the source, validates it, and confirms
// the principal still exists. The storage read is bounded by the handshake
// timeout so a connection attempt can never hang here.
func (a *Authenticator) Authenticate(ctx context.Context, src CredentialSource) (domain.Principal, error) {
	tokenString, ok := src.ExtractToken()
	if !ok {
		return domain.Principal{}, errors.ErrInvalidCredential
	}

	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		a.log.Debug("Token rejected", "err", err)
		return domain.Principal{}, fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		a.log.Warn("Token references unknown user", "user_id", claims.UserID)
		return domain.Principal{}, errors.ErrPrincipalNotFound
	}

	return domain.Principal{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Roles:     user.Roles,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
