package privatechat

import "sync"

// ConversationCache remembers the conversation keys known to exist.
// Entries are never evicted: a conversation once seen stays for the life of the process.
type ConversationCache struct {
	mu        sync.RWMutex
	confirmed map[string]bool
}

func NewConversationCache() *ConversationCache {
	return &ConversationCache{confirmed: make(map[string]bool)}
}

func (c *ConversationCache) Confirmed(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmed[key]
}

func (c *ConversationCache) Confirm(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed[key] = true
}

func (c *ConversationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.confirmed)
}
