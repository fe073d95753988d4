package authclient

import "sync"

// Cache кеш віддалених ресурсів поточної сесії.
// Запис, отриманий до Purge, не потрапляє в кеш після нього.
type Cache struct {
	mutex      sync.RWMutex
	entries    map[string][]byte
	generation uint64
}

// NewCache створює порожній кеш
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

// Get повертає збережене тіло відповіді
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	data, ok := c.entries[key]
	return data, ok
}

// Generation повертає поточне покоління кешу
func (c *Cache) Generation() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.generation
}

// Store зберігає запис, якщо з моменту generation не було Purge
func (c *Cache) Store(generation uint64, key string, data []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if generation != c.generation {
		return false
	}
	c.entries[key] = data
	return true
}

// Purge видаляє всі записи і починає нове покоління
func (c *Cache) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string][]byte)
	c.generation++
}

// Len повертає кількість записів
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}
