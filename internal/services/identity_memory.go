package services

import (
	"context"
	"sync"
	"time"
)

// MemoryCredentialStore реалізація CredentialStore в пам'яті
type MemoryCredentialStore struct {
	byID    map[string]*Identity
	byEmail map[string]string
	mutex   sync.RWMutex
}

// NewMemoryCredentialStore створює нове сховище в пам'яті
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryCredentialStore) FindByIdentity(_ context.Context, email string) (*Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *MemoryCredentialStore) FindByID(_ context.Context, id string) (*Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (s *MemoryCredentialStore) Create(_ context.Context, identity *Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prepareNewIdentity(identity, time.Now())
	if _, exists := s.byEmail[identity.Email]; exists {
		return ErrConflict
	}

	copied := *identity
	s.byID[identity.ID] = &copied
	s.byEmail[identity.Email] = identity.ID
	return nil
}

func (s *MemoryCredentialStore) VerifyPassword(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := s.FindByIdentity(ctx, email)
	if err != nil {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err := checkPassword(identity, password); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *MemoryCredentialStore) Update(_ context.Context, identity *Identity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.byID[identity.ID]
	if !ok {
		return ErrNotFound
	}

	identity.Email = NormalizeEmail(identity.Email)
	if owner, taken := s.byEmail[identity.Email]; taken && owner != identity.ID {
		return ErrConflict
	}
	delete(s.byEmail, current.Email)

	identity.UpdatedAt = time.Now()
	copied := *identity
	s.byID[identity.ID] = &copied
	s.byEmail[identity.Email] = identity.ID
	return nil
}
