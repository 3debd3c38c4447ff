// Package account registers and authenticates portal users.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/logging"
	"github.com/Tyrowin/gameportal/internal/storage"
	"github.com/Tyrowin/gameportal/internal/validation"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRegistration wraps validation failures for Register.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// User is a stored account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Identity returns the token identity for u.
func (u User) Identity() auth.Identity {
	return auth.Identity{ID: u.ID, Username: u.Username, Role: u.Role}
}

// Credentials is the body of register and login requests.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6"`
}

// Store persists users.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CountUsers(ctx context.Context) (int, error)
}

// Service implements registration and login.
type Service struct {
	store      Store
	bcryptCost int
	now        func() time.Time
}

// NewService creates an account service hashing passwords at bcryptCost.
func NewService(store Store, bcryptCost int) *Service {
	return &Service{store: store, bcryptCost: bcryptCost, now: time.Now}
}

// Register creates a user. The first account ever created becomes an admin.
func (s *Service) Register(ctx context.Context, c Credentials) (User, error) {
	c.Username = strings.TrimSpace(c.Username)
	if err := validation.Struct(c); err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return User{}, fmt.Errorf("count users: %w", err)
	}
	role := auth.RoleUser
	if count == 0 {
		role = auth.RoleAdmin
	}

	return s.create(ctx, c, role)
}

// Login checks the credentials and returns the matching user.
func (s *Service) Login(ctx context.Context, c Credentials) (User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(c.Username))
	if errors.Is(err, storage.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.ComparePassword(c.Password, u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureAdmin creates an admin account with the given credentials unless a
// user with that name already exists.
func (s *Service) EnsureAdmin(ctx context.Context, c Credentials) (bool, error) {
	_, err := s.store.GetUserByUsername(ctx, c.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.create(ctx, c, auth.RoleAdmin); err != nil {
		return false, err
	}
	logging.Info().Str("username", c.Username).Msg("Default admin account created")
	return true, nil
}

func (s *Service) create(ctx context.Context, c Credentials, role string) (User, error) {
	hash, err := auth.HashPassword(c.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     c.Username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
