package service

import (
	"context"
	"crypto/subtle"
	"time"

	"alpaclub/internal/core/ports"
	"alpaclub/pkg/apperror"

	"github.com/rs/zerolog"
)

// AdminAuthService implements ports.AuthService against the single
// administrator account held in configuration.
type AdminAuthService struct {
	username string
	password string
	tokenSvc ports.TokenService
	log      zerolog.Logger
}

// NewAdminAuthService creates a new AdminAuthService. An empty configured
// password disables admin login entirely.
func NewAdminAuthService(username, password string, tokenSvc ports.TokenService, log zerolog.Logger) *AdminAuthService {
	return &AdminAuthService{
		username: username,
		password: password,
		tokenSvc: tokenSvc,
		log:      log,
	}
}

// Login verifies the admin credentials and issues a session token.
func (s *AdminAuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if s.password == "" {
		s.log.Warn().Msg("admin login attempted but no admin password is configured")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(s.username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}

	s.log.Info().Str("username", s.username).Msg("admin logged in")
	return token, expiresAt, nil
}
