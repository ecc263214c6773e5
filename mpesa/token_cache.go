package mpesa

import (
	"sync"
	"time"
)

// tokenCache хранит единственный access token и момент, после которого он
// считается протухшим.
type tokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{}
}

func (t *tokenCache) get(now time.Time) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.token == "" || !now.Before(t.expiresAt) {
		return "", false
	}
	return t.token, true
}

func (t *tokenCache) put(token string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = token
	t.expiresAt = expiresAt
}
