//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"

	"roomcast/auth"
	"roomcast/errors"
	"roomcast/repositories"
)

type Token string

type IAuthService interface {
	Register(ctx context.Context, name, email, password string) (Token, error)
	Login(ctx context.Context, email, password string) (Token, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (Token, error) {
	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(ctx, name, email, hashedPassword)
	if err != nil {
		// Propagates ErrUserAlreadyExists when the email is taken.
		return "", err
	}
	s.log.Info("User registered", "user_id", userID)

	token, err := s.tokens.Generate(userID, email, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		// Generic error to prevent user enumeration attacks.
		return "", errors.ErrInvalidLogin
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidLogin
	}

	token, err := s.tokens.Generate(user.ID, user.Email, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
