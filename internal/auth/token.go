// Package auth provides JWT issuance/validation, password hashing, and the
// request middleware that resolves the authenticated user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL is deliberately short; clients refresh transparently.
	AccessTokenTTL = time.Hour
	// RefreshTokenTTL matches the mobile app's expectation of staying
	// signed in for about two months between launches.
	RefreshTokenTTL = 60 * 24 * time.Hour

	issuer = "gitping-relay"
)

// TokenPair is what every successful auth operation returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService signs and validates the two token kinds. Access and refresh
// tokens use separate HMAC secrets so a leaked access secret cannot mint
// long-lived credentials.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
}

// NewTokenService creates a TokenService. Both secrets must be non-trivial.
func NewTokenService(accessSecret, refreshSecret string) (*TokenService, error) {
	if len(accessSecret) < 16 || len(refreshSecret) < 16 {
		return nil, errors.New("auth: JWT secrets must be at least 16 characters")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// GeneratePair issues a fresh access/refresh token pair for userID.
func (s *TokenService) GeneratePair(userID uuid.UUID) (TokenPair, error) {
	access, err := s.sign(userID, s.accessSecret, AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, s.refreshSecret, RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) sign(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ValidateAccess verifies an access token and returns the user id.
func (s *TokenService) ValidateAccess(tokenStr string) (uuid.UUID, error) {
	return s.validate(tokenStr, s.accessSecret)
}

// ValidateRefresh verifies a refresh token and returns the user id.
func (s *TokenService) ValidateRefresh(tokenStr string) (uuid.UUID, error) {
	return s.validate(tokenStr, s.refreshSecret)
}

func (s *TokenService) validate(tokenStr string, secret []byte) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, errors.New("auth: token expired")
		}
		return uuid.Nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("auth: invalid token claims")
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth: token subject is not a user id: %w", err)
	}
	return userID, nil
}
