package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"minimail/internal/model"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository is the in-memory credential store keyed by normalized email.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]model.User)}
}

// CreateUser inserts a new user. Email is normalized and an id is assigned when missing.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	email := model.NormalizeEmail(u.Email)
	if email == "" {
		return errors.New("email is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[email]; ok {
		return ErrUserExists
	}

	u.Email = email
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users[email] = *u
	return nil
}

// FindByEmail returns user by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	key := model.NormalizeEmail(email)
	if key == "" {
		return nil, ErrUserNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Count returns the number of registered users.
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
