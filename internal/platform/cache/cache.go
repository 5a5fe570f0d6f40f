package cache

import (
	"sync"
	"time"
)

// Permissions caches computed permission sets per user. Invalidation is
// explicit: user and role mutation call sites invoke InvalidateUser or
// InvalidateRole. There is deliberately no pattern matching and no
// global state.
type Permissions[T any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	byID  map[string]entry[T]
	users map[string]string // userID -> roleID at time of caching
}

type entry[T any] struct {
	value   T
	expires time.Time
}

func NewPermissions[T any](ttl time.Duration) *Permissions[T] {
	return &Permissions[T]{
		ttl:   ttl,
		byID:  map[string]entry[T]{},
		users: map[string]string{},
	}
}

func (c *Permissions[T]) Get(userID string, now time.Time) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[userID]
	if !ok || now.After(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *Permissions[T]) Set(userID, roleID string, value T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[userID] = entry[T]{value: value, expires: now.Add(c.ttl)}
	c.users[userID] = roleID
}

func (c *Permissions[T]) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, userID)
	delete(c.users, userID)
}

func (c *Permissions[T]) InvalidateRole(roleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userID, cachedRole := range c.users {
		if cachedRole == roleID {
			delete(c.byID, userID)
			delete(c.users, userID)
		}
	}
}
