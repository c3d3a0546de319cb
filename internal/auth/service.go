package auth

import (
    "context"
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// UnauthenticatedMessage is the client-facing text for rejected tokens.
const UnauthenticatedMessage = "Invalid, expired, or revoked token"

// ErrUnauthenticated covers missing, malformed, expired and revoked tokens.
var ErrUnauthenticated = errors.New("invalid, expired, or revoked token")

// Service issues, verifies and revokes HS256 access tokens.
type Service struct {
    secret  []byte
    ttl     time.Duration
    revoked RevocationStore
    now     func() time.Time
}

// NewService builds a token service.
func NewService(secret string, ttl time.Duration, revoked RevocationStore) *Service {
    if revoked == nil {
        revoked = NewMemoryRevocationStore()
    }
    return &Service{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

// Issue signs a fresh access token for the user.
func (s *Service) Issue(userID int64, email string) (string, time.Time, error) {
    now := s.now()
    exp := now.Add(s.ttl)
    claims := Claims{
        Email: email,
        RegisteredClaims: jwt.RegisteredClaims{
            ID:        uuid.NewString(),
            Subject:   strconv.FormatInt(userID, 10),
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
    if err != nil {
        return "", time.Time{}, fmt.Errorf("sign token: %w", err)
    }
    return signed, exp, nil
}

// Verify checks signature, expiry and revocation and returns the caller.
func (s *Service) Verify(ctx context.Context, token string) (Principal, error) {
    principal, err := s.parse(token)
    if err != nil {
        return Principal{}, err
    }
    revoked, err := s.revoked.IsRevoked(ctx, principal.TokenID)
    if err != nil {
        return Principal{}, fmt.Errorf("check revocation: %w", err)
    }
    if revoked {
        return Principal{}, ErrUnauthenticated
    }
    return principal, nil
}

// Logout revokes the token until its natural expiry. Revoking an already
// revoked token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
    principal, err := s.parse(token)
    if err != nil {
        return err
    }
    return s.revoked.Revoke(ctx, principal.TokenID, principal.ExpiresAt)
}

func (s *Service) parse(token string) (Principal, error) {
    var claims Claims
    _, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, jwt.ErrTokenSignatureInvalid
        }
        return s.secret, nil
    }, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
    if err != nil {
        return Principal{}, ErrUnauthenticated
    }

    userID, err := strconv.ParseInt(claims.Subject, 10, 64)
    if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
        return Principal{}, ErrUnauthenticated
    }
    return Principal{
        UserID:    userID,
        Email:     claims.Email,
        TokenID:   claims.ID,
        ExpiresAt: claims.ExpiresAt.Time,
    }, nil
}
