package domain

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput updates the caller's profile. Empty fields are left untouched.
type ProfileInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// keyUnsafe are characters table storage refuses in row keys; the email
// index is keyed by address.
const keyUnsafe = "/\\#?"

func validEmail(email string) bool {
	if strings.ContainsAny(email, keyUnsafe) {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(v *ValidationError, name string) {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLength {
		v.Add("name", "name must be at least 2 characters")
	}
}

func (in RegisterInput) Validate() error {
	v := &ValidationError{}
	validateName(v, in.Name)
	if !validEmail(normalizeEmail(in.Email)) {
		v.Add("email", "invalid email address")
	}
	switch {
	case len(in.Password) < minPasswordLength:
		v.Add("password", "password must be at least 6 characters")
	case len(in.Password) > maxPasswordBytes:
		v.Add("password", "password must be at most 72 bytes")
	}
	return v.OrNil()
}

func (in LoginInput) Validate() error {
	v := &ValidationError{}
	if !validEmail(normalizeEmail(in.Email)) {
		v.Add("email", "invalid email address")
	}
	if in.Password == "" {
		v.Add("password", "password is required")
	}
	return v.OrNil()
}

func (in ProfileInput) Validate() error {
	v := &ValidationError{}
	if in.Name != "" {
		validateName(v, in.Name)
	}
	if in.Email != "" && !validEmail(normalizeEmail(in.Email)) {
		v.Add("email", "invalid email address")
	}
	return v.OrNil()
}

// UserService owns registration, login and profile changes.
type UserService struct {
	st     UserStorage
	hasher Hasher
	now    func() time.Time
}

func NewUserService(st UserStorage, hasher Hasher) *UserService {
	return &UserService{st: st, hasher: hasher, now: func() time.Time { return time.Now().UTC() }}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.st.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login returns the account matching the credentials. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.st.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*User, error) {
	return s.st.GetUser(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := u.Email
	if in.Name != "" {
		u.Name = strings.TrimSpace(in.Name)
	}
	if in.Email != "" {
		u.Email = normalizeEmail(in.Email)
	}
	u.UpdatedAt = s.now()
	if err := s.st.UpdateUser(ctx, *u, previous); err != nil {
		return nil, err
	}
	return u, nil
}

// Directory lists every user for assignment pickers, ordered by name.
func (s *UserService) Directory(ctx context.Context) ([]UserSummary, error) {
	users, err := s.st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}
