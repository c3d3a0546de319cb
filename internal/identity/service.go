package identity

import (
    "context"
    "errors"
    "strings"
    "time"

    "golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

var (
    // ErrInvalidCredentials hides whether the email or the password was wrong.
    ErrInvalidCredentials = errors.New("invalid credentials")
    // ErrPasswordTooLong rejects passwords bcrypt would refuse to hash.
    ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Service manages identity lifecycle.
type Service struct {
    repo Repository
    cost int
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
    return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
    return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user and stores a bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
    if len(reg.Password) > MaxPasswordBytes {
        return User{}, ErrPasswordTooLong
    }
    hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
    if err != nil {
        return User{}, err
    }

    user := User{
        Email:        NormalizeEmail(reg.Email),
        FullName:     strings.TrimSpace(reg.FullName),
        PasswordHash: hash,
        CreatedAt:    time.Now().UTC(),
    }
    return s.repo.Create(ctx, user)
}

// Authenticate verifies an email and password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
    user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
    if err != nil {
        if errors.Is(err, ErrUserNotFound) {
            return User{}, ErrInvalidCredentials
        }
        return User{}, err
    }

    if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
        return User{}, ErrInvalidCredentials
    }
    return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
    return s.repo.FindByID(ctx, id)
}
