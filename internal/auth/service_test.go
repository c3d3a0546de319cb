package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return NewService("test-secret", time.Hour, NewRedisRevocationStore(cache)), mr
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("test-secret", time.Hour, nil)
	token, exp, err := svc.Issue(42, "ann@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != 42 || p.Email != "ann@example.com" || p.TokenID == "" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if !p.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("expected expiry %v, got %v", exp, p.ExpiresAt)
	}
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	svc := NewService("test-secret", time.Hour, nil)
	other := NewService("other-secret", time.Hour, nil)
	foreign, _, err := other.Issue(1, "x@y.z")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, token := range []string{"", "not.a.token", foreign} {
		if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("token %q: expected unauthenticated, got %v", token, err)
		}
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	svc := NewService("test-secret", time.Hour, nil)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "jti",
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", time.Minute, nil)
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }
	token, _, err := svc.Issue(1, "a@b.co")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = time.Now

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	svc, mr := newRedisService(t)
	ctx := context.Background()

	first, _, _ := svc.Issue(7, "a@b.co")
	second, _, _ := svc.Issue(7, "a@b.co")

	if err := svc.Logout(ctx, first); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := svc.Logout(ctx, first); err != nil {
		t.Fatalf("second logout should be a no-op, got %v", err)
	}
	if _, err := svc.Verify(ctx, first); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
	if _, err := svc.Verify(ctx, second); err != nil {
		t.Fatalf("other token should stay valid: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one revocation key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("revocation should expire with the token, ttl=%v", ttl)
	}
}

func TestMemoryRevocationStoreExpires(t *testing.T) {
	store := NewMemoryRevocationStore().(*memoryRevocationStore)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Revoke(ctx, "jti", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := store.IsRevoked(ctx, "jti"); !ok {
		t.Fatal("expected token to be revoked")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := store.IsRevoked(ctx, "jti"); ok {
		t.Fatal("expected revocation to lapse after expiry")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":  {"abc", true},
		"bearer  abc": {"abc", true},
		"Bearer ":     {"", false},
		"Basic abc":   {"", false},
		"":            {"", false},
	}
	for header, want := range cases {
		got, ok := BearerToken(header)
		if got != want.token || ok != want.ok {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", header, got, ok, want.token, want.ok)
		}
	}
}
