package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/obsidian/internal/apperror"
)

// newTestTokenService uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	if _, err := NewTokenService("this-is-16-chars"); err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// GENERATE / VALIDATE TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Generate() token doesn't look like a JWT: %q", token)
	}
}

func TestGenerate_ExpiresAfterOneHour(t *testing.T) {
	ts := newTestTokenService(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return fixed }

	token, err := ts.Generate(5)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims{})
	if err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	c := parsed.Claims.(*claims)
	if got := c.ExpiresAt.Time.Sub(c.IssuedAt.Time); got != time.Hour {
		t.Errorf("lifetime = %v, want 1h", got)
	}
	if c.UserID != 5 || c.Subject != "5" {
		t.Errorf("claims userId=%d sub=%q, want 5 / \"5\"", c.UserID, c.Subject)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(42)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Validate() userID = %d, want 42", got)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(1, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("expired token error should wrap ErrUnauthorized")
	}
}

func TestValidate_ExpiresAfterClockAdvances(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()
	ts.now = func() time.Time { return now }

	token, _ := ts.Generate(1)

	ts.now = func() time.Time { return now.Add(TokenTTL + time.Minute) }
	if _, err := ts.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate() after TTL error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Generate(1)

	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")
	foreign, _ := other.Generate(1)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"wrong secret", foreign},
		{"alg none", noneToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ts.Validate(tc.token)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Validate(%q) error = %v, want ErrUnauthorized", tc.name, err)
			}
		})
	}
}
