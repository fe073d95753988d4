package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CSRFEntry запис виданого CSRF токена
type CSRFEntry struct {
	Token            string    `json:"token"`
	IssuedAt         time.Time `json:"issued_at"`
	RequesterAddress string    `json:"requester_address"`
}

// CSRFStore інтерфейс для таблиці виданих CSRF токенів
type CSRFStore interface {
	Put(ctx context.Context, entry CSRFEntry) error
	Get(ctx context.Context, token string) (*CSRFEntry, error)
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryCSRFStore обмежена таблиця CSRF токенів у пам'яті
type MemoryCSRFStore struct {
	entries    map[string]CSRFEntry
	maxEntries int
	mutex      sync.Mutex
}

// NewMemoryCSRFStore створює нову таблицю. maxEntries <= 0 вимикає обмеження.
func NewMemoryCSRFStore(maxEntries int) *MemoryCSRFStore {
	return &MemoryCSRFStore{
		entries:    make(map[string]CSRFEntry),
		maxEntries: maxEntries,
	}
}

// Put додає запис, витісняючи найстаріший, якщо таблиця заповнена
func (s *MemoryCSRFStore) Put(_ context.Context, entry CSRFEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[entry.Token] = entry
	return nil
}

func (s *MemoryCSRFStore) Get(_ context.Context, token string) (*CSRFEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[token]
	if !exists {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Sweep видаляє записи, видані не пізніше cutoff
func (s *MemoryCSRFStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleaned := 0
	for token, entry := range s.entries {
		if !entry.IssuedAt.After(cutoff) {
			delete(s.entries, token)
			cleaned++
		}
	}
	return cleaned, nil
}

// Len повертає кількість записів у таблиці
func (s *MemoryCSRFStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

func (s *MemoryCSRFStore) evictOldestLocked() {
	var oldestToken string
	var oldestAt time.Time
	for token, entry := range s.entries {
		if oldestToken == "" || entry.IssuedAt.Before(oldestAt) {
			oldestToken = token
			oldestAt = entry.IssuedAt
		}
	}
	if oldestToken != "" {
		delete(s.entries, oldestToken)
	}
}

// CSRFConfig налаштування CSRFGuard
type CSRFConfig struct {
	TTL time.Duration
	// StrictAddressBinding відхиляє запит, якщо адреса відрізняється від адреси видачі
	StrictAddressBinding bool
	Now                  func() time.Time
}

// CSRFRequest дані запиту, потрібні для перевірки double-submit
type CSRFRequest struct {
	Method           string
	CookieToken      string
	SubmittedToken   string
	RequesterAddress string
}

// CSRFGuard видає та перевіряє CSRF токени
type CSRFGuard struct {
	store CSRFStore
	cfg   CSRFConfig
}

// NewCSRFGuard створює новий CSRFGuard
func NewCSRFGuard(store CSRFStore, cfg CSRFConfig) *CSRFGuard {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CSRFGuard{store: store, cfg: cfg}
}

// TTL повертає час життя токена
func (g *CSRFGuard) TTL() time.Duration {
	return g.cfg.TTL
}

// Issue генерує токен з 256 біт ентропії і записує його в таблицю
func (g *CSRFGuard) Issue(ctx context.Context, requesterAddress string) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}

	entry := CSRFEntry{
		Token:            token,
		IssuedAt:         g.cfg.Now(),
		RequesterAddress: requesterAddress,
	}
	if err := g.store.Put(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to record csrf token: %w", err)
	}
	return token, nil
}

// Validate перевіряє double-submit. Усі відмови повертають ErrForbidden.
func (g *CSRFGuard) Validate(ctx context.Context, req CSRFRequest) error {
	if IsSafeMethod(req.Method) {
		return nil
	}

	now := g.cfg.Now()
	if _, err := g.Sweep(ctx); err != nil {
		logrus.WithError(err).Warn("CSRF sweep failed")
	}

	if req.SubmittedToken == "" || req.CookieToken == "" {
		return fmt.Errorf("%w: csrf token missing", ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(req.SubmittedToken), []byte(req.CookieToken)) != 1 {
		return fmt.Errorf("%w: csrf token mismatch", ErrForbidden)
	}

	entry, err := g.store.Get(ctx, req.CookieToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: csrf token unknown", ErrForbidden)
		}
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	if !now.Before(entry.IssuedAt.Add(g.cfg.TTL)) {
		return fmt.Errorf("%w: csrf token expired", ErrForbidden)
	}

	if entry.RequesterAddress != req.RequesterAddress {
		logrus.WithFields(logrus.Fields{
			"issued_to":  entry.RequesterAddress,
			"request_ip": req.RequesterAddress,
			"strict":     g.cfg.StrictAddressBinding,
		}).Warn("CSRF token used from a different address")
		if g.cfg.StrictAddressBinding {
			return fmt.Errorf("%w: csrf address mismatch", ErrForbidden)
		}
	}

	return nil
}

// Sweep видаляє записи, старші за TTL
func (g *CSRFGuard) Sweep(ctx context.Context) (int, error) {
	cleaned, err := g.store.Sweep(ctx, g.cfg.Now().Add(-g.cfg.TTL))
	if err != nil {
		return 0, err
	}
	if cleaned > 0 {
		logrus.WithField("cleaned_count", cleaned).Debug("Swept expired CSRF tokens")
	}
	return cleaned, nil
}

// IsSafeMethod повідомляє, чи метод не змінює стан
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// randomToken генерує криптографічно стійкий base64url рядок
func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
