package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken wraps every token parsing or verification failure.
var ErrInvalidToken = errors.New("invalid token")

// AuthService signs and verifies RS256 access tokens.
type AuthService struct {
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	accessTokenTTL time.Duration
	now            func() time.Time
}

// TokenClaims carries the user id read by the auth middleware.
type TokenClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// NewAuthService parses the PEM encoded key pair.
func NewAuthService(privateKeyPEM, publicKeyPEM []byte, accessTTL time.Duration) (*AuthService, error) {
	if len(privateKeyPEM) == 0 {
		return nil, errors.New("private key pem is required")
	}
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	return NewAuthServiceFromKeys(privateKey, publicKey, accessTTL), nil
}

// NewAuthServiceFromKeys builds the service from already parsed keys.
func NewAuthServiceFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, accessTTL time.Duration) *AuthService {
	return &AuthService{
		privateKey:     privateKey,
		publicKey:      publicKey,
		accessTokenTTL: accessTTL,
		now:            time.Now,
	}
}

// LoadAuthService reads both PEM files from disk.
func LoadAuthService(privateKeyPath, publicKeyPath string, accessTTL time.Duration) (*AuthService, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewAuthService(privatePEM, publicPEM, accessTTL)
}

// GenerateToken issues an access token for userID.
func (s *AuthService) GenerateToken(userID uint) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTokenTTL)

	claims := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses tokenString and checks signature and expiry.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	return claims, nil
}

// AccessTokenTTL exposes the configured token lifetime.
func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}
