// ABOUTME: JWT-backed sessions handed to the auth lifecycle
// ABOUTME: Issues and verifies HS256 tokens and exposes them as lifecycle sessions

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenSession is a verified token. It satisfies lifecycle.Session with the
// token subject as the user identifier, so two tokens for the same subject
// denote the same user.
type TokenSession struct {
	Token     string
	ID        string
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// UserID returns the token subject.
func (s *TokenSession) UserID() string {
	return s.Subject
}

// Expired reports whether the token is past its expiry at now.
func (s *TokenSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier issues and verifies HS256 signed session tokens
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Issue signs a token for subject valid for ttl and returns it as a session.
func (v *JWTVerifier) Issue(subject, email string, ttl time.Duration) (*TokenSession, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	now := time.Now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &TokenSession{
		Token:     signed,
		ID:        claims.ID,
		Subject:   subject,
		Email:     email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Session validates tokenString and returns the session it encodes.
func (v *JWTVerifier) Session(tokenString string) (*TokenSession, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	session := &TokenSession{
		Token:   tokenString,
		ID:      claims.ID,
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Verify validates the token and returns its subject.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	session, err := v.Session(tokenString)
	if err != nil {
		return "", err
	}
	return session.Subject, nil
}
