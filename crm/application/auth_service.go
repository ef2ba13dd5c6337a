package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

// LoginResult es la respuesta de POST /auth/login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// AuthService emite JWT para agentes activos con contraseña
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenIssuer
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Login(ctx context.Context, request domain.LoginRequest) (*LoginResult, error) {
	if err := validations.ValidateLogin(ctx, request); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(request.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	// mismo error para no revelar qué cuentas existen
	if !user.IsActive || user.PasswordHash == "" || !security.CheckPasswordHash(request.Password, user.PasswordHash) {
		logrus.Warnf("[AUTH] Rejected login for %s", user.Email)
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
