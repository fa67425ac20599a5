package llm

import (
	"fmt"
	"os"
	"sync"
)

// KeyManager rotates across the numbered GEMINI_API_KEY_n variables so a
// rate-limited key can be swapped out mid-session.
type KeyManager struct {
	mu      sync.Mutex
	keys    []string
	current int
}

// NewKeyManager collects the primary key and any numbered rotation keys.
func NewKeyManager(primary string) *KeyManager {
	var keys []string
	if primary != "" {
		keys = append(keys, primary)
	}
	for i := 1; i <= 4; i++ {
		if key := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)); key != "" {
			keys = append(keys, key)
		}
	}
	return &KeyManager{keys: keys}
}

// Empty reports whether no key is available.
func (km *KeyManager) Empty() bool {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.keys) == 0
}

// Current returns the active key without advancing rotation.
func (km *KeyManager) Current() string {
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.keys) == 0 {
		return ""
	}
	return km.keys[km.current]
}

// Next advances to the next key and returns it. With a single key it keeps
// returning that key.
func (km *KeyManager) Next() string {
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.keys) == 0 {
		return ""
	}
	km.current = (km.current + 1) % len(km.keys)
	return km.keys[km.current]
}
