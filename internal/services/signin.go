package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// Фази однієї спроби входу через провайдера
const (
	PhaseInitiated        = "initiated"
	PhaseCallbackReceived = "callback_received"
	PhaseExchanging       = "exchanging"
	PhaseCompleted        = "completed"
	PhaseRejected         = "rejected"
)

// CallbackParams параметри, з якими провайдер повертає користувача.
// BoundState береться з cookie браузера, виставленої при Begin.
type CallbackParams struct {
	Code       string
	State      string
	Error      string
	BoundState string
}

// SignInConfig налаштування координатора входу
type SignInConfig struct {
	DefaultRole     string
	ExchangeTimeout time.Duration
}

// SignInCoordinator веде authorization-code обмін зі стороннім провайдером
type SignInCoordinator struct {
	provider IdentityProvider
	states   StateService
	handoffs HandoffService
	store    CredentialStore
	tokens   TokenService
	cfg      SignInConfig
}

// NewSignInCoordinator створює новий координатор
func NewSignInCoordinator(
	provider IdentityProvider,
	states StateService,
	handoffs HandoffService,
	store CredentialStore,
	tokens TokenService,
	cfg SignInConfig,
) *SignInCoordinator {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = RoleStaff
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 15 * time.Second
	}
	return &SignInCoordinator{
		provider: provider,
		states:   states,
		handoffs: handoffs,
		store:    store,
		tokens:   tokens,
		cfg:      cfg,
	}
}

// Begin створює state з PKCE verifier і повертає URL авторизації провайдера разом зі state
func (c *SignInCoordinator) Begin(ctx context.Context) (string, string, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := c.states.GenerateState(ctx, verifier)
	if err != nil {
		return "", "", signInFailure(SignInCodeServer, err)
	}

	logrus.WithFields(logrus.Fields{
		"phase":    PhaseInitiated,
		"provider": c.provider.Name(),
	}).Info("Sign-in initiated")

	return c.provider.AuthCodeURL(state, verifier), state, nil
}

// Complete обробляє callback: перевіряє state, обмінює code і випускає локальні токени.
// State видаляється до будь-яких інших перевірок.
func (c *SignInCoordinator) Complete(ctx context.Context, params CallbackParams) (*AuthResult, error) {
	log := logrus.WithField("provider", c.provider.Name())
	log.WithField("phase", PhaseCallbackReceived).Info("Sign-in callback received")

	entry, err := c.states.ConsumeState(ctx, params.State)
	if err != nil {
		log.WithError(err).WithField("phase", PhaseRejected).Warn("Sign-in state check failed")
		if errors.Is(err, ErrForbidden) {
			return nil, signInFailure(SignInCodeStateMismatch, err)
		}
		return nil, signInFailure(SignInCodeServer, err)
	}
	// state спалюється і тоді, коли прив'язка до браузера не збігається
	if subtle.ConstantTimeCompare([]byte(params.BoundState), []byte(params.State)) != 1 {
		log.WithField("phase", PhaseRejected).Warn("Sign-in state is not bound to this browser")
		return nil, signInFailure(SignInCodeStateMismatch, errors.New("state does not match browser binding"))
	}

	if params.Error != "" {
		log.WithField("phase", PhaseRejected).Warn("Provider reported an authorization error")
		return nil, signInFailure(SignInCodeDenied, fmt.Errorf("provider error: %s", params.Error))
	}
	if params.Code == "" {
		log.WithField("phase", PhaseRejected).Warn("Callback without authorization code")
		return nil, signInFailure(SignInCodeMissingCode, errors.New("authorization code missing"))
	}

	log.WithField("phase", PhaseExchanging).Info("Exchanging authorization code")
	exchangeCtx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeTimeout)
	defer cancel()

	assertion, err := c.provider.Exchange(exchangeCtx, params.Code, entry.Verifier)
	if err != nil {
		log.WithError(err).WithField("phase", PhaseRejected).Error("Authorization code exchange failed")
		return nil, signInFailure(SignInCodeExchangeFailed, err)
	}
	if !assertion.EmailVerified {
		log.WithField("phase", PhaseRejected).Warn("Provider email is not verified")
		return nil, signInFailure(SignInCodeEmailUnverified, errors.New("provider email not verified"))
	}

	identity, err := c.resolveIdentity(ctx, assertion)
	if err != nil {
		log.WithError(err).WithField("phase", PhaseRejected).Error("Failed to resolve local identity")
		return nil, signInFailure(SignInCodeAccount, err)
	}

	result, err := issueSession(c.tokens, identity)
	if err != nil {
		return nil, signInFailure(SignInCodeServer, err)
	}

	log.WithFields(logrus.Fields{
		"phase":   PhaseCompleted,
		"user_id": identity.ID,
	}).Info("Sign-in completed")
	return result, nil
}

// StashHandoff кладе access token у слот для варіанту з обміном через POST
func (c *SignInCoordinator) StashHandoff(ctx context.Context, result *AuthResult) (string, error) {
	return c.handoffs.Stash(ctx, Handoff{
		IdentityID:  result.Identity.ID,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt,
	})
}

// ClaimHandoff забирає слот один раз і повертає токен з обліковим записом
func (c *SignInCoordinator) ClaimHandoff(ctx context.Context, slotID string) (*Handoff, *Identity, error) {
	handoff, err := c.handoffs.Claim(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	identity, err := c.store.FindByID(ctx, handoff.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: identity gone", ErrUnauthenticated)
		}
		return nil, nil, err
	}
	return handoff, identity, nil
}

// resolveIdentity знаходить обліковий запис за нормалізованим email або створює новий
func (c *SignInCoordinator) resolveIdentity(ctx context.Context, assertion *ProviderIdentity) (*Identity, error) {
	identity, err := c.store.FindByIdentity(ctx, assertion.Email)
	if err == nil {
		return c.linkProvider(ctx, identity, assertion)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	identity = &Identity{
		Email:           assertion.Email,
		DisplayName:     assertion.Name,
		Role:            c.cfg.DefaultRole,
		AuthProvider:    c.provider.Name(),
		ProviderSubject: assertion.Subject,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = NormalizeEmail(assertion.Email)
	}

	if err := c.store.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrConflict) {
			// паралельний callback встиг створити запис
			return c.store.FindByIdentity(ctx, assertion.Email)
		}
		return nil, err
	}

	logrus.WithField("user_id", identity.ID).Info("Identity provisioned from provider")
	return identity, nil
}

func (c *SignInCoordinator) linkProvider(ctx context.Context, identity *Identity, assertion *ProviderIdentity) (*Identity, error) {
	if identity.ProviderSubject != "" {
		if identity.ProviderSubject != assertion.Subject {
			return nil, fmt.Errorf("%w: provider subject mismatch", ErrForbidden)
		}
		return identity, nil
	}

	identity.ProviderSubject = assertion.Subject
	if identity.DisplayName == "" {
		identity.DisplayName = assertion.Name
	}
	if err := c.store.Update(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}
