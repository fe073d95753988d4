package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"admin-auth/internal/models"

	"github.com/sirupsen/logrus"
)

// authService реалізація AuthService
type authService struct {
	store       CredentialStore
	tokens      TokenService
	defaultRole string
}

// NewAuthService створює новий AuthService
func NewAuthService(store CredentialStore, tokens TokenService, defaultRole string) AuthService {
	if defaultRole == "" {
		defaultRole = RoleStaff
	}
	return &authService{
		store:       store,
		tokens:      tokens,
		defaultRole: defaultRole,
	}
}

// Register реєструє новий обліковий запис і одразу випускає токени
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error) {
	email := NormalizeEmail(req.Email)
	logrus.WithField("email", email).Info("AuthService: Register called")

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.Name),
		Role:         s.defaultRole,
		AuthProvider: ProviderLocal,
	}
	if err := s.store.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrConflict) {
			logrus.WithField("email", email).Warn("Registration for existing identity")
		}
		return nil, err
	}

	logrus.WithField("user_id", identity.ID).Info("Identity registered")
	return issueSession(s.tokens, identity)
}

// Login перевіряє пароль і випускає токени
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	identity, err := s.store.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		logrus.WithError(err).WithField("email", NormalizeEmail(req.Email)).Warn("Password login failed")
		return nil, err
	}

	logrus.WithField("user_id", identity.ID).Info("User logged in")
	return issueSession(s.tokens, identity)
}

// Refresh випускає новий access token за дійсним refresh token і ротує refresh token
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh cookie missing", ErrUnauthenticated)
	}

	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		logrus.WithError(err).Warn("Refresh token rejected")
		return nil, err
	}

	identity, err := s.store.FindByID(ctx, claims.SubjectID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: identity gone", ErrUnauthenticated)
		}
		return nil, err
	}

	return issueSession(s.tokens, identity)
}

// Me повертає поточний обліковий запис
func (s *authService) Me(ctx context.Context, subjectID string) (*Identity, error) {
	identity, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: identity gone", ErrUnauthenticated)
		}
		return nil, err
	}
	return identity, nil
}

// issueSession випускає пару токенів для облікового запису
func issueSession(tokens TokenService, identity *Identity) (*AuthResult, error) {
	access, accessExp, err := tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := tokens.IssueRefreshToken(identity)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Identity:         identity,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
