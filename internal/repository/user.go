package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/store"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// UserRepository persists users in the "users" collection.
type UserRepository struct {
	coll *store.Collection[domain.User]
	now  func() time.Time
}

func NewUserRepository(s *store.Store) (*UserRepository, error) {
	coll, err := store.NewCollection[domain.User](s, "users")
	if err != nil {
		return nil, fmt.Errorf("store.NewCollection -> %w", err)
	}

	return &UserRepository{coll: coll, now: time.Now}, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]domain.User, error) {
	all, err := r.coll.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("r.coll.ReadAll -> %w", err)
	}

	return all, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	user, ok, err := r.coll.FindByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.coll.FindByID -> %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}

	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	matches, err := r.coll.FindWhere(func(u domain.User) bool { return u.Username == username })
	if err != nil {
		return domain.User{}, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}
	if len(matches) == 0 {
		return domain.User{}, ErrUserNotFound
	}

	return matches[0], nil
}

// Create inserts a new user after a uniqueness scan on the username. The
// scan and the insert are not held under one lock; concurrent identical
// registrations leave a narrow race window that is accepted because user
// creation is a low-frequency admin action.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if _, err := r.FindByUsername(ctx, user.Username); err == nil {
		return domain.User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return domain.User{}, err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := r.coll.Insert(user); err != nil {
		return domain.User{}, fmt.Errorf("r.coll.Insert -> %w", err)
	}

	return user, nil
}

// Update applies mutate to the stored user and stamps updated_at.
func (r *UserRepository) Update(ctx context.Context, id string, mutate func(*domain.User)) (domain.User, error) {
	updated, ok, err := r.coll.Update(id, func(u *domain.User) {
		mutate(u)
		u.UpdatedAt = r.now()
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("r.coll.Update -> %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}

	return updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.coll.Delete(id)
	if err != nil {
		return fmt.Errorf("r.coll.Delete -> %w", err)
	}
	if !removed {
		return ErrUserNotFound
	}

	return nil
}
