package service

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
)

var (
	ErrUserNotFound     = repository.ErrUserNotFound
	ErrUsernameTaken    = repository.ErrUsernameTaken
	ErrInvalidRole      = errors.New("role must be admin or jury")
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
	ErrNoChanges        = errors.New("no fields to update")
)

type UserRepository interface {
	FindAll(ctx context.Context) ([]domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, id string, mutate func(*domain.User)) (domain.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService covers the admin-side account operations. The boundary is
// expected to have authenticated the acting admin already; the only actor
// check the core enforces is the self-delete refusal.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserInput carries an already-hashed credential; hashing secrets is
// the caller's concern.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	Role         string
	Name         string
}

func (in CreateUserInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.PasswordHash, validation.Required),
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Role, validation.Required),
	); err != nil {
		return err
	}

	if !domain.ValidRole(in.Role) {
		return ErrInvalidRole
	}

	return nil
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	if err := in.Validate(); err != nil {
		return domain.User{}, err
	}

	created, err := s.repo.Create(ctx, domain.User{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Name:         in.Name,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Name         *string
	Role         *string
	PasswordHash *string
}

func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (domain.User, error) {
	if in.Name == nil && in.Role == nil && in.PasswordHash == nil {
		return domain.User{}, ErrNoChanges
	}
	if in.Role != nil && !domain.ValidRole(*in.Role) {
		return domain.User{}, ErrInvalidRole
	}

	updated, err := s.repo.Update(ctx, id, func(u *domain.User) {
		if in.Name != nil {
			u.Name = *in.Name
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.PasswordHash != nil {
			u.PasswordHash = *in.PasswordHash
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

// DeleteUser removes a user. Admins are never allowed to delete themselves,
// so there is always at least one account that can undo a mistake.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrCannotDeleteSelf
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}

	return nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	return users, nil
}
