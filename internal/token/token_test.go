package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSvc(t *testing.T, c *clock) *Service {
	t.Helper()
	s, err := New(secret, WithClock(c.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_ShortSecret(t *testing.T) {
	t.Parallel()
	if _, err := New([]byte("short")); err == nil {
		t.Fatalf("want error for short secret")
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := newSvc(t, c)

	for _, role := range []model.Role{model.RoleUser, model.RoleAdmin} {
		id := uuid.Must(uuid.NewV4())
		tok, exp, err := s.Issue(id, role)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if !exp.Equal(c.t.Add(TTL)) {
			t.Fatalf("exp=%v want %v", exp, c.t.Add(TTL))
		}

		c.t = c.t.Add(TTL - time.Second)
		got, err := s.Verify(tok)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if got.UserID != id || got.Role != role {
			t.Fatalf("claims mismatch: %+v", got)
		}
		if got.ExpiresAt.Sub(got.IssuedAt) != TTL {
			t.Fatalf("ttl=%v", got.ExpiresAt.Sub(got.IssuedAt))
		}
		c.t = c.t.Add(-(TTL - time.Second))
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &clock{t: start}
	s := newSvc(t, c)

	tok, _, err := s.Issue(uuid.Must(uuid.NewV4()), model.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.t = start.Add(TTL)
	if _, err := s.Verify(tok); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("at exactly 24h want ErrTokenExpired, got %v", err)
	}

	c.t = start.Add(TTL + time.Second)
	if _, err := s.Verify(tok); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("at 24h+1s want ErrTokenExpired, got %v", err)
	}
}

func TestIssue_TruncatesSubSecond(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 900_000_000, time.UTC)}
	s := newSvc(t, c)
	_, exp, err := s.Issue(uuid.Must(uuid.NewV4()), model.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if exp.Nanosecond() != 0 {
		t.Fatalf("exp must be whole seconds: %v", exp)
	}
}

func TestVerify_Signature(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	s := newSvc(t, c)
	other, err := New([]byte("fedcba9876543210fedcba9876543210"), WithClock(c.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tok, _, err := other.Issue(uuid.Must(uuid.NewV4()), model.RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(tok); !errors.Is(err, errs.ErrTokenSignature) {
		t.Fatalf("want ErrTokenSignature, got %v", err)
	}

	// Same secret, different HMAC size: rejected by the method allow-list.
	claims := jwt.RegisteredClaims{
		Subject:   uuid.Must(uuid.NewV4()).String(),
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := s.Verify(hs512); !errors.Is(err, errs.ErrTokenSignature) {
		t.Fatalf("want ErrTokenSignature for HS512, got %v", err)
	}

	// Tampered payload.
	good, _, _ := s.Issue(uuid.Must(uuid.NewV4()), model.RoleUser)
	parts := strings.Split(good, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "AA"
	if _, err := s.Verify(strings.Join(parts, ".")); err == nil {
		t.Fatalf("want error on tampered token")
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now()}
	s := newSvc(t, c)

	for _, tok := range []string{"", "abc", "a.b.c", "...."} {
		if _, err := s.Verify(tok); !errors.Is(err, errs.ErrTokenMalformed) {
			t.Fatalf("Verify(%q): want ErrTokenMalformed, got %v", tok, err)
		}
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: uuid.Must(uuid.NewV4()).String(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := s.Verify(noExp); err == nil {
		t.Fatalf("want error for token without exp")
	}

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := s.Verify(badSub); !errors.Is(err, errs.ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed for bad subject, got %v", err)
	}
}
