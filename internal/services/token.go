package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenType позначає клас токена
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims представляє claims обох класів токенів.
// Для refresh токена Email і Role порожні.
type Claims struct {
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// SubjectID повертає ідентифікатор облікового запису
func (c *Claims) SubjectID() string {
	return c.Subject
}

// TokenConfig налаштування TokenService
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// jwtTokenService реалізація TokenService на HS256
type jwtTokenService struct {
	cfg TokenConfig
}

// NewTokenService створює новий TokenService
func NewTokenService(cfg TokenConfig) TokenService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 14 * 24 * time.Hour
	}
	return &jwtTokenService{cfg: cfg}
}

// IssueAccessToken випускає короткоживучий access token
func (s *jwtTokenService) IssueAccessToken(identity *Identity) (string, time.Time, error) {
	now := s.cfg.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	claims := Claims{
		Email:     identity.Email,
		Role:      identity.Role,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken випускає довгоживучий refresh token з маркером type=refresh
func (s *jwtTokenService) IssueRefreshToken(identity *Identity) (string, time.Time, error) {
	now := s.cfg.Now()
	expiresAt := now.Add(s.cfg.RefreshTTL)

	claims := Claims{
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify перевіряє підпис, строк дії та маркер типу.
// Повертає одну з ErrInvalidSignature, ErrTokenExpired, ErrWrongTokenType, ErrInvalidClaims.
func (s *jwtTokenService) Verify(token string, expected TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.cfg.Now),
	}
	if expected == TokenTypeAccess {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidSignature
	}

	if claims.TokenType != expected {
		logrus.WithFields(logrus.Fields{
			"expected": expected,
			"actual":   claims.TokenType,
		}).Warn("Token type mismatch")
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w (%v)", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w (%v)", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w (%v)", ErrInvalidClaims, err)
	}
}
