package service

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

var ErrNoAPIKeys = errors.New("no API keys configured")

// Keyring dispenses generative-API credentials in round-robin order so load
// spreads across the pool. Rotation is a load-spreading heuristic, not a
// fairness guarantee: concurrent callers may observe the same key twice in a
// row. A pool of one degenerates to always returning that key.
type Keyring struct {
	keys   []string
	cursor atomic.Uint64
}

// NewKeyring creates a keyring over the given credentials.
func NewKeyring(keys []string) (*Keyring, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoAPIKeys
	}
	return &Keyring{keys: cleaned}, nil
}

// NewKeyringFromEnv reads the comma-separated GEMINI_KEYS variable. An empty
// or missing variable is a fatal startup condition for callers.
func NewKeyringFromEnv() (*Keyring, error) {
	raw := os.Getenv("GEMINI_KEYS")
	if raw == "" {
		return nil, fmt.Errorf("GEMINI_KEYS environment variable is required: %w", ErrNoAPIKeys)
	}
	return NewKeyring(strings.Split(raw, ","))
}

// Next returns the next credential in round-robin order.
func (k *Keyring) Next() string {
	n := k.cursor.Add(1) - 1
	return k.keys[n%uint64(len(k.keys))]
}

// Size returns the number of credentials in the pool.
func (k *Keyring) Size() int {
	return len(k.keys)
}
