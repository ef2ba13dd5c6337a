package application

import (
	"context"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/security"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

// UserService administra agentes; las contraseñas se guardan con bcrypt
type UserService struct {
	users    domain.UserRepository
	notifier domain.Notifier
}

func NewUserService(users domain.UserRepository, notifier domain.Notifier) *UserService {
	return &UserService{users: users, notifier: notifierOrNoop(notifier)}
}

func (s *UserService) List(ctx context.Context) ([]domain.UserSummary, error) {
	return s.users.List(ctx)
}

func (s *UserService) Create(ctx context.Context, request domain.CreateUserRequest) (*domain.User, error) {
	if err := validations.ValidateCreateUser(ctx, request); err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:     strings.TrimSpace(request.Name),
		Email:    request.Email,
		Phone:    request.Phone,
		Role:     domain.RoleAgent,
		IsActive: true,
	}
	if request.Role != "" {
		user.Role = domain.UserRole(strings.ToUpper(request.Role))
	}
	if request.IsActive != nil {
		user.IsActive = *request.IsActive
	}
	if request.Password != "" {
		hash, err := security.HashPassword(request.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logrus.Infof("[USER] Created %s %s", user.Role, user.Email)
	return user, nil
}

// Update cambia solo los campos presentes y anuncia cambios de isActive a todos los clientes
func (s *UserService) Update(ctx context.Context, id string, request domain.UpdateUserRequest) (*domain.User, error) {
	if err := validations.ValidateUpdateUser(ctx, request); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := user.IsActive

	if request.Name != nil {
		user.Name = strings.TrimSpace(*request.Name)
	}
	if request.Email != nil {
		user.Email = *request.Email
	}
	if request.Phone != nil {
		user.Phone = *request.Phone
	}
	if request.Role != nil {
		user.Role = domain.UserRole(strings.ToUpper(*request.Role))
	}
	if request.IsActive != nil {
		user.IsActive = *request.IsActive
	}
	if request.Password != nil {
		hash, err := security.HashPassword(*request.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if wasActive != user.IsActive {
		s.notifier.BroadcastAll(userStatusChanged(user))
	}
	return user, nil
}

func (s *UserService) Stats(ctx context.Context, id string) (domain.UserStats, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return domain.UserStats{}, err
	}
	return s.users.Stats(ctx, id)
}
