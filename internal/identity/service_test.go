package identity

import (
    "context"
    "errors"
    "strings"
    "testing"

    "golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
    svc := NewService(NewMemoryRepository())
    svc.cost = bcrypt.MinCost
    return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
    svc := newTestService()
    ctx := context.Background()

    user, err := svc.Register(ctx, Registration{Email: " Ann@Example.com ", FullName: "Ann Lee", Password: "s3cret"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    if user.ID == 0 || user.Email != "ann@example.com" {
        t.Fatalf("unexpected user %+v", user)
    }
    if string(user.PasswordHash) == "s3cret" {
        t.Fatalf("password stored in clear")
    }

    authed, err := svc.Authenticate(ctx, "ANN@example.com", "s3cret")
    if err != nil {
        t.Fatalf("authenticate: %v", err)
    }
    if authed.ID != user.ID {
        t.Fatalf("expected user %d, got %d", user.ID, authed.ID)
    }
}

func TestRegisterDuplicateEmail(t *testing.T) {
    svc := newTestService()
    ctx := context.Background()

    if _, err := svc.Register(ctx, Registration{Email: "a@b.co", FullName: "A", Password: "pw"}); err != nil {
        t.Fatalf("register: %v", err)
    }
    if _, err := svc.Register(ctx, Registration{Email: "A@B.CO", FullName: "B", Password: "pw"}); !errors.Is(err, ErrEmailTaken) {
        t.Fatalf("expected email taken, got %v", err)
    }
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
    svc := newTestService()
    ctx := context.Background()

    // 37 two-byte runes: short in characters, too long for bcrypt.
    long := strings.Repeat("é", 37)
    if _, err := svc.Register(ctx, Registration{Email: "a@b.co", FullName: "A", Password: long}); !errors.Is(err, ErrPasswordTooLong) {
        t.Fatalf("expected password too long, got %v", err)
    }
    if _, err := svc.Register(ctx, Registration{Email: "a@b.co", FullName: "A", Password: strings.Repeat("x", MaxPasswordBytes)}); err != nil {
        t.Fatalf("register with %d-byte password: %v", MaxPasswordBytes, err)
    }
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
    svc := newTestService()
    ctx := context.Background()

    if _, err := svc.Register(ctx, Registration{Email: "a@b.co", FullName: "A", Password: "pw"}); err != nil {
        t.Fatalf("register: %v", err)
    }
    if _, err := svc.Authenticate(ctx, "a@b.co", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected invalid credentials for wrong password, got %v", err)
    }
    if _, err := svc.Authenticate(ctx, "nobody@b.co", "pw"); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected invalid credentials for unknown email, got %v", err)
    }
}
