package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrMalformedCredential is returned when the credential header is
	// missing, is not JSON, or lacks the email or password field.
	ErrMalformedCredential = errors.New("bad/no auth credentials")
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password.
	ErrInvalidCredentials = errors.New("bad email or password")
	// ErrUserNotFound is returned by a UserRepository for an unknown email.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository looks users up by email.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Credential is the JSON document carried in the Authorization header.
type Credential struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// ParseCredential decodes the Authorization header value.
func ParseCredential(header string) (email, password string, err error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "", ErrMalformedCredential
	}
	var cred Credential
	if err := json.Unmarshal([]byte(header), &cred); err != nil {
		return "", "", ErrMalformedCredential
	}
	if cred.Email == nil || cred.Password == nil {
		return "", "", ErrMalformedCredential
	}
	return *cred.Email, *cred.Password, nil
}

// Gate authenticates callers from the credential header.
type Gate struct {
	users UserRepository
}

func NewGate(users UserRepository) *Gate {
	return &Gate{users: users}
}

// Authenticate resolves the header to a stored user. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials and both pay for one bcrypt
// comparison.
func (g *Gate) Authenticate(ctx context.Context, header string) (*User, error) {
	email, password, err := ParseCredential(header)
	if err != nil {
		return nil, err
	}

	u, err := g.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !PasswordMatches(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// PasswordMatches compares a candidate password with the stored value. Stored
// values that are not bcrypt hashes are compared as plaintext in constant
// time. An empty stored value never matches.
func PasswordMatches(stored, candidate string) bool {
	if stored == "" {
		return false
	}
	if IsHashed(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// HashPassword returns the bcrypt hash stored for a new user.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// IsHashed reports whether a stored password is a bcrypt hash.
func IsHashed(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("no-such-user"), bcrypt.DefaultCost)
	})
	return dummy
}
