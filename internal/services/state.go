package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const statePrefix = "oauth_state:"

// StateEntry дані, прив'язані до одного OAuth state значення
type StateEntry struct {
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// StateService інтерфейс для одноразових OAuth state параметрів
type StateService interface {
	GenerateState(ctx context.Context, verifier string) (string, error)
	ConsumeState(ctx context.Context, state string) (*StateEntry, error)
}

// stateService реалізація StateService поверх OnceStore
type stateService struct {
	store OnceStore
	ttl   time.Duration
	now   func() time.Time
}

// NewStateService створює новий State сервіс
func NewStateService(store OnceStore, ttl time.Duration) StateService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &stateService{store: store, ttl: ttl, now: time.Now}
}

// GenerateState генерує state параметр і зберігає його на час одного обміну
func (s *stateService) GenerateState(ctx context.Context, verifier string) (string, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(StateEntry{Verifier: verifier, CreatedAt: s.now()})
	if err != nil {
		return "", fmt.Errorf("failed to encode state entry: %w", err)
	}
	if err := s.store.Save(ctx, statePrefix+state, payload, s.ttl); err != nil {
		return "", err
	}

	logrus.WithField("state", state[:8]+"...").Debug("Generated new state parameter")
	return state, nil
}

// ConsumeState валідує state і видаляє його незалежно від результату
func (s *stateService) ConsumeState(ctx context.Context, state string) (*StateEntry, error) {
	if state == "" {
		return nil, fmt.Errorf("%w: state missing", ErrForbidden)
	}

	payload, err := s.store.Consume(ctx, statePrefix+state)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: state unknown or already used", ErrForbidden)
		}
		return nil, err
	}

	var entry StateEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode state entry: %w", err)
	}
	return &entry, nil
}
