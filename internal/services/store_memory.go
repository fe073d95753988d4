package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type onceEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryOnceStore реалізація OnceStore в пам'яті для одного процесу
type MemoryOnceStore struct {
	entries map[string]onceEntry
	mutex   sync.Mutex
	now     func() time.Time
}

// NewMemoryOnceStore створює нове сховище одноразових значень
func NewMemoryOnceStore(now func() time.Time) *MemoryOnceStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryOnceStore{
		entries: make(map[string]onceEntry),
		now:     now,
	}
}

// Save зберігає значення з TTL
func (s *MemoryOnceStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[key] = onceEntry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Consume атомарно забирає значення. Запис видаляється за будь-якого результату.
func (s *MemoryOnceStore) Consume(_ context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[key]
	delete(s.entries, key)

	if !exists {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Sweep видаляє прострочені записи і повертає їх кількість
func (s *MemoryOnceStore) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	cleaned := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			cleaned++
		}
	}
	return cleaned
}

// Len повертає кількість записів, включно з простроченими
func (s *MemoryOnceStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// Start запускає періодичне очищення до скасування контексту
func (s *MemoryOnceStore) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cleaned := s.Sweep(); cleaned > 0 {
					logrus.WithField("cleaned_count", cleaned).Debug("Cleaned up expired one-time entries")
				}
			}
		}
	}()
}
