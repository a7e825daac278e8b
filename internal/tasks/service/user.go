package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/store"
	"github.com/aussiebroadwan/tasktrack/pkg/cryptox"
	"github.com/aussiebroadwan/tasktrack/pkg/idx"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
)

var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrUsernameTaken       = errors.New("username_taken")
	ErrInvalidRegistration = errors.New("invalid_registration")
	ErrPrincipalNotFound   = errors.New("principal_not_found")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 8
	maxPasswordLength = 256
)

// UserService is the user directory: it creates principals and checks their
// passwords. It never sees tokens.
type UserService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Now    func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register validates the request, hashes the password and stores a new
// principal holding the default user role.
func (s *UserService) Register(ctx context.Context, username, email, password string) (domain.Principal, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return domain.Principal{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.CreatePrincipal(ctx, username, email, hash)
	if err != nil {
		return domain.Principal{}, err
	}

	slogx.FromContext(ctx).Info("principal registered",
		slog.String("user_id", p.ID),
		slog.String("username", p.Username),
	)
	return p, nil
}

// Login returns the principal when username and password match. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.Principal, error) {
	p, err := s.FindPrincipal(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrPrincipalNotFound) {
		s.Hasher.VerifyDummy(password)
		return domain.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Principal{}, err
	}

	if !s.VerifyPassword(ctx, p, password) {
		return domain.Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

// FindPrincipal looks a principal up by username.
func (s *UserService) FindPrincipal(ctx context.Context, username string) (domain.Principal, error) {
	p, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, ErrPrincipalNotFound
	}
	return p, err
}

// FindPrincipalByID looks a principal up by the identifier carried in tokens.
func (s *UserService) FindPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	p, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, ErrPrincipalNotFound
	}
	return p, err
}

// VerifyPassword reports whether plaintext matches the principal's stored hash.
func (s *UserService) VerifyPassword(ctx context.Context, p domain.Principal, plaintext string) bool {
	err := s.Hasher.Verify(plaintext, p.PasswordHash)
	if err != nil && !errors.Is(err, cryptox.ErrMismatch) {
		slogx.FromContext(ctx).Error("stored password hash unreadable",
			slog.String("user_id", p.ID),
			slog.Any("err", err),
		)
	}
	return err == nil
}

// CreatePrincipal stores a principal with an already computed password hash.
func (s *UserService) CreatePrincipal(ctx context.Context, username, email, passwordHash string) (domain.Principal, error) {
	now := s.now().UTC()
	p := domain.Principal{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		Roles:        []string{domain.RoleUser},
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Principal{}, ErrUsernameTaken
		}
		return domain.Principal{}, err
	}
	return p, nil
}

func validateRegistration(username, email, password string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d to %d characters", ErrInvalidRegistration, minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: username may only contain letters, digits, '.', '-' and '_'", ErrInvalidRegistration)
		}
	}

	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidRegistration)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidRegistration)
	}

	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidRegistration, minPasswordLength, maxPasswordLength)
	}
	return nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	default:
		return false
	}
}
