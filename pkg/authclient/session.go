package authclient

import (
	"sync"
	"time"
)

// Identity поточний обліковий запис, як його повертає сервер
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	AuthProvider string    `json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// session тримає access token та identity лише в пам'яті процесу.
// epoch збільшується при кожній зміні токена, щоб відрізнити
// "токен уже оновили" від "сесію вже закрили".
type session struct {
	mutex       sync.RWMutex
	accessToken string
	expiresAt   time.Time
	identity    *Identity
	loading     bool
	epoch       uint64
}

// snapshot знімок токена разом з epoch
type snapshot struct {
	token string
	epoch uint64
}

func (s *session) snapshot() snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return snapshot{token: s.accessToken, epoch: s.epoch}
}

func (s *session) token() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.accessToken
}

// set атомарно встановлює токен та identity і повертає нову epoch
func (s *session) set(identity *Identity, token string, expiresAt time.Time) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.accessToken = token
	s.expiresAt = expiresAt
	s.identity = copyIdentity(identity)
	s.epoch++
	return s.epoch
}

// setTokenAt змінює токен, лише якщо сесія не змінилася з epoch want
func (s *session) setTokenAt(want uint64, token string, expiresAt time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.epoch != want {
		return false
	}
	s.accessToken = token
	s.expiresAt = expiresAt
	s.epoch++
	return true
}

// setIdentityAt встановлює identity для сесії з epoch want
func (s *session) setIdentityAt(want uint64, identity *Identity) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.epoch != want {
		return false
	}
	s.identity = copyIdentity(identity)
	return true
}

func (s *session) clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clearLocked()
}

// clearAt закриває сесію, лише якщо її не замінили після epoch want
func (s *session) clearAt(want uint64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.epoch != want {
		return false
	}
	s.clearLocked()
	return true
}

func (s *session) clearLocked() {
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.identity = nil
	s.epoch++
}

func (s *session) currentIdentity() *Identity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return copyIdentity(s.identity)
}

func (s *session) expiry() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.expiresAt
}

func (s *session) setLoading(loading bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.loading = loading
}

func (s *session) isLoading() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loading
}

func copyIdentity(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}
