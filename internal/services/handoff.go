package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const handoffPrefix = "oauth_handoff:"

// Handoff короткоживучий серверний слот з access token після OAuth входу
type Handoff struct {
	IdentityID  string    `json:"identity_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HandoffService інтерфейс для одноразових слотів передачі токена
type HandoffService interface {
	Stash(ctx context.Context, handoff Handoff) (string, error)
	Claim(ctx context.Context, slotID string) (*Handoff, error)
}

type handoffService struct {
	store OnceStore
	ttl   time.Duration
}

// NewHandoffService створює новий сервіс слотів
func NewHandoffService(store OnceStore, ttl time.Duration) HandoffService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &handoffService{store: store, ttl: ttl}
}

// Stash кладе токен у слот і повертає ідентифікатор слота
func (s *handoffService) Stash(ctx context.Context, handoff Handoff) (string, error) {
	slotID, err := randomToken(32)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(handoff)
	if err != nil {
		return "", fmt.Errorf("failed to encode handoff: %w", err)
	}
	if err := s.store.Save(ctx, handoffPrefix+slotID, payload, s.ttl); err != nil {
		return "", err
	}
	return slotID, nil
}

// Claim забирає слот рівно один раз
func (s *handoffService) Claim(ctx context.Context, slotID string) (*Handoff, error) {
	if slotID == "" {
		return nil, fmt.Errorf("%w: no pending sign-in", ErrUnauthenticated)
	}
	payload, err := s.store.Consume(ctx, handoffPrefix+slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no pending sign-in", ErrUnauthenticated)
		}
		return nil, err
	}

	var handoff Handoff
	if err := json.Unmarshal(payload, &handoff); err != nil {
		return nil, fmt.Errorf("failed to decode handoff: %w", err)
	}
	return &handoff, nil
}
