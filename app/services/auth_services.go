package services

import (
	"context"
	"errors"

	"github.com/opsipintar/catalog/pkg/auth"
	"github.com/opsipintar/catalog/pkg/logger"
)

type AuthService struct{}

func NewAuthService() *AuthService {
	return &AuthService{}
}

// Login exchanges the admin credentials for a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	token, err := auth.Login(email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logger.WithCtx(ctx).Warn("auth: login rejected", "email", email)
	}
	return token, err
}
