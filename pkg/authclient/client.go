// Package authclient клієнт сесії адмін-панелі.
//
// Access token та identity живуть лише в пам'яті процесу. Refresh token
// зберігається у HTTP-only cookie і ніколи не читається кодом клієнта.
// Запити через HTTPClient() автоматично отримують bearer токен, а при 401
// виконується одне спільне для всіх запитів оновлення сесії.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"admin-auth/pkg/tokencheck"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Імена, узгоджені з сервером
const (
	CSRFHeaderName       = "X-CSRF-Token"
	FormFieldAccessToken = "accessToken"
	FormFieldExpiresAt   = "expiresAt"
)

const (
	defaultTimeout = 10 * time.Second
	refreshFlight  = "refresh"
)

// Config налаштування клієнта
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    logrus.FieldLogger
	Now       func() time.Time
}

// Client контролер сесії
type Client struct {
	baseURL   *url.URL
	timeout   time.Duration
	jar       http.CookieJar
	api       *http.Client
	raw       *http.Client
	session   *session
	cache     *Cache
	validator *tokencheck.Validator
	flights   singleflight.Group
	log       logrus.FieldLogger

	csrfMutex sync.Mutex
	csrfToken string
}

type sessionPayload struct {
	Identity    *Identity `json:"identity"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type refreshPayload struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// New створює клієнт для сервера за BaseURL
func New(cfg Config) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:   baseURL,
		timeout:   cfg.Timeout,
		jar:       jar,
		session:   &session{},
		cache:     NewCache(),
		validator: tokencheck.NewValidator(tokencheck.Config{Now: cfg.Now}),
		log:       cfg.Logger.WithField("component", "authclient"),
	}
	c.raw = &http.Client{Jar: jar, Timeout: cfg.Timeout, Transport: cfg.Transport}
	c.api = &http.Client{Jar: jar, Timeout: cfg.Timeout, Transport: &transport{client: c, base: cfg.Transport}}
	return c, nil
}

// HTTPClient повертає http.Client, що підставляє токен і оновлює сесію при 401
func (c *Client) HTTPClient() *http.Client {
	return c.api
}

// Cache повертає кеш ресурсів сесії
func (c *Client) Cache() *Cache {
	return c.cache
}

// Bootstrap відновлює сесію при старті застосунку через refresh cookie.
// Невдача означає "не залогінений", а не помилку.
func (c *Client) Bootstrap(ctx context.Context) bool {
	c.session.setLoading(true)
	defer c.session.setLoading(false)

	if err := c.Refresh(ctx); err != nil {
		c.log.WithError(err).Debug("No session to restore")
		return false
	}

	restored := c.session.snapshot()
	identity, err := c.fetchIdentity(ctx, restored.token)
	if err != nil {
		c.log.WithError(err).Debug("Failed to load identity for restored session")
		c.endSessionAt(restored.epoch)
		return false
	}
	return c.session.setIdentityAt(restored.epoch, identity)
}

// Login атомарно встановлює identity і access token
func (c *Client) Login(identity *Identity, accessToken string) error {
	claims, err := c.validator.Check(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if identity == nil {
		return fmt.Errorf("%w: identity is required", ErrInvalidToken)
	}
	c.session.set(identity, accessToken, claims.ExpiresAt)
	return nil
}

// SignIn входить за email і паролем
func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	return c.openSession(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
}

// SignUp реєструє обліковий запис і відкриває сесію
func (c *Client) SignUp(ctx context.Context, email, name, password string) (*Identity, error) {
	return c.openSession(ctx, "/auth/register", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}, http.StatusCreated)
}

// ClaimOAuthSession забирає результат входу через провайдера з серверного слота
func (c *Client) ClaimOAuthSession(ctx context.Context) (*Identity, error) {
	return c.openSession(ctx, "/auth/oauth/verify", nil, http.StatusOK)
}

// AcceptCallbackForm приймає токен, доставлений формою після входу через провайдера
func (c *Client) AcceptCallbackForm(ctx context.Context, form url.Values) (*Identity, error) {
	token := form.Get(FormFieldAccessToken)
	claims, err := c.validator.Check(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c.cache.Purge()
	epoch := c.session.set(nil, token, claims.ExpiresAt)

	identity, err := c.fetchIdentity(ctx, token)
	if err != nil {
		c.endSessionAt(epoch)
		return nil, err
	}
	if !c.session.setIdentityAt(epoch, identity) {
		return nil, ErrSessionExpired
	}
	return identity, nil
}

// Logout закриває сесію на сервері та локально.
// 401 і 404 від сервера означають, що сесії вже немає.
func (c *Client) Logout(ctx context.Context) {
	defer func() {
		c.endSession()
		c.clearCSRF()
	}()

	token := c.session.token()
	if token == "" {
		return
	}

	resp, err := c.post(ctx, "/auth/logout", token, nil)
	if err != nil {
		c.log.WithError(err).Warn("Logout request failed")
		return
	}
	defer drainAndClose(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusUnauthorized, http.StatusNotFound:
	default:
		c.log.WithField("status", resp.StatusCode).Warn("Unexpected logout response")
	}
}

// Refresh отримує новий access token через refresh cookie.
// Невдача закриває сесію і очищає кеш.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.flights.Do(refreshFlight, func() (interface{}, error) {
		return c.refresh(ctx, c.session.snapshot().epoch)
	})
	return err
}

// GetJSON читає ресурс з кешу сесії або з сервера.
// Без сесії повертає ErrNotAuthenticated.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	if data, ok := c.cache.Get(path); ok {
		return json.Unmarshal(data, out)
	}

	generation := c.cache.Generation()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	c.cache.Store(generation, path, data)
	return nil
}

// Identity повертає копію поточної identity або nil
func (c *Client) Identity() *Identity {
	return c.session.currentIdentity()
}

// AccessToken повертає поточний access token
func (c *Client) AccessToken() string {
	return c.session.token()
}

// ExpiresAt повертає час закінчення access token
func (c *Client) ExpiresAt() time.Time {
	return c.session.expiry()
}

// Authenticated повідомляє, чи є активна сесія
func (c *Client) Authenticated() bool {
	return c.session.token() != ""
}

// Loading повідомляє, що триває Bootstrap
func (c *Client) Loading() bool {
	return c.session.isLoading()
}

// Claims повертає claims поточного токена для рішень інтерфейсу або nil
func (c *Client) Claims() *tokencheck.Claims {
	token := c.session.token()
	if token == "" {
		return nil
	}
	return c.validator.Validate(token)
}

// renew оновлює токен після 401. Запити, що отримали 401 з тим самим
// токеном, чекають одне спільне оновлення.
func (c *Client) renew(ctx context.Context, used snapshot) (string, error) {
	value, err, _ := c.flights.Do(refreshFlight, func() (interface{}, error) {
		current := c.session.snapshot()
		if current.epoch != used.epoch {
			if current.token == "" {
				return "", ErrSessionExpired
			}
			return current.token, nil
		}
		return c.refresh(ctx, current.epoch)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// refresh оновлює токен сесії з epoch. Якщо за час запиту сесію закрили
// або відкрили нову, результат відкидається і нова сесія лишається недоторканою.
func (c *Client) refresh(ctx context.Context, epoch uint64) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	resp, err := c.post(ctx, "/auth/refresh", "", nil)
	if err != nil {
		c.endSessionAt(epoch)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := readAPIError(resp)
		c.endSessionAt(epoch)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
	}
	defer resp.Body.Close()

	var payload refreshPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.endSessionAt(epoch)
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	claims, err := c.validator.Check(payload.AccessToken)
	if err != nil {
		c.endSessionAt(epoch)
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !c.session.setTokenAt(epoch, payload.AccessToken, claims.ExpiresAt) {
		c.log.Debug("Session changed during refresh, discarding token")
		return "", fmt.Errorf("%w: session changed during refresh", ErrSessionExpired)
	}
	c.log.Debug("Access token refreshed")
	return payload.AccessToken, nil
}

func (c *Client) openSession(ctx context.Context, path string, body interface{}, wantStatus int) (*Identity, error) {
	resp, err := c.post(ctx, path, "", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != wantStatus {
		return nil, readAPIError(resp)
	}
	defer resp.Body.Close()

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// дані попереднього користувача не мають пережити зміну сесії
	c.cache.Purge()
	if err := c.Login(payload.Identity, payload.AccessToken); err != nil {
		return nil, err
	}
	return c.session.currentIdentity(), nil
}

// fetchIdentity читає /auth/me з конкретним токеном, без оновлення сесії
func (c *Client) fetchIdentity(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/auth/me"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	defer resp.Body.Close()

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &identity, nil
}

// post надсилає запит до auth ендпоінту з CSRF токеном.
// Якщо CSRF токен застарів, отримує новий і повторює один раз.
func (c *Client) post(ctx context.Context, path, token string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		csrf, err := c.ensureCSRF(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(CSRFHeaderName, csrf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.raw.Do(req)
		if err != nil {
			return nil, err
		}
		c.observe(resp)

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			drainAndClose(resp)
			c.dropCSRF(csrf)
			continue
		}
		return resp, nil
	}
}

// ensureCSRF повертає CSRF токен, отримуючи його з сервера за потреби
func (c *Client) ensureCSRF(ctx context.Context) (string, error) {
	c.csrfMutex.Lock()
	defer c.csrfMutex.Unlock()

	if c.csrfToken != "" {
		return c.csrfToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/auth/csrf"), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.raw.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch CSRF token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}
	defer resp.Body.Close()

	token := resp.Header.Get(CSRFHeaderName)
	if token == "" {
		var payload struct {
			CSRFToken string `json:"csrfToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			token = payload.CSRFToken
		}
	}
	if token == "" {
		return "", ErrNoCSRFToken
	}
	c.csrfToken = token
	return token, nil
}

// observe запам'ятовує CSRF токен з відповіді сервера
func (c *Client) observe(resp *http.Response) {
	token := resp.Header.Get(CSRFHeaderName)
	if token == "" {
		return
	}
	c.csrfMutex.Lock()
	c.csrfToken = token
	c.csrfMutex.Unlock()
}

func (c *Client) clearCSRF() {
	c.csrfMutex.Lock()
	defer c.csrfMutex.Unlock()
	c.csrfToken = ""
}

func (c *Client) dropCSRF(stale string) {
	c.csrfMutex.Lock()
	defer c.csrfMutex.Unlock()
	if c.csrfToken == stale {
		c.csrfToken = ""
	}
}

// endSession очищає сесію і кеш
func (c *Client) endSession() {
	c.session.clear()
	c.cache.Purge()
}

// endSessionAt очищає сесію і кеш, якщо сесію з epoch ще не замінили
func (c *Client) endSessionAt(epoch uint64) {
	if c.session.clearAt(epoch) {
		c.cache.Purge()
	}
}

func (c *Client) owns(req *http.Request) bool {
	return strings.EqualFold(req.URL.Scheme, c.baseURL.Scheme) && strings.EqualFold(req.URL.Host, c.baseURL.Host)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// IsSessionExpired повідомляє, що помилка означає втрату сесії
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
