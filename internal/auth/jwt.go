// Package auth provides JWT token issuance and validation, bcrypt password
// digests, and the bearer-token middleware that guards the API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client POSTs email + password to /api/auth/login
// 2. Server checks the bcrypt digest and issues a signed JWT (1 hour lifetime)
// 3. Client sends "Authorization: Bearer <jwt>" on every other request
// 4. RequireAuth validates the JWT and puts the user id in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"1","userId":1,"iss":"obsidian","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/obsidian/internal/apperror"
)

const (
	// TokenTTL is the fixed lifetime of an access token.
	TokenTTL = time.Hour

	issuer = "obsidian"
)

var (
	ErrInvalidToken = apperror.Unauthorized("invalid token")
	ErrTokenExpired = apperror.Unauthorized("token expired")
)

// TokenService handles JWT creation and validation with a shared HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. The user id travels twice: as the standard
// "sub" claim (string) and as "userId" (number) for clients that decode
// the token themselves.
type claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// Generate issues a token for userID that expires after TokenTTL.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, TokenTTL)
}

// GenerateWithDuration issues a token with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	now := s.now()

	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user id it carries.
//
// Checks performed by the jwt library: HS256 signature, expiry present and in
// the future, issuer "obsidian". Pinning the method with WithValidMethods
// prevents algorithm confusion ("alg":"none" and friends).
//
// Every failure wraps apperror.ErrUnauthorized.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	if c.UserID <= 0 || c.Subject != strconv.FormatInt(c.UserID, 10) {
		return 0, fmt.Errorf("%w: subject does not match userId", ErrInvalidToken)
	}

	return c.UserID, nil
}
