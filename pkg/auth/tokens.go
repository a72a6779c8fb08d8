package auth

import "sync"

// TokenStore holds the short-lived access token in memory.
// Nothing is persisted and the token's shape is never checked.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates an empty token store
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, empty when none is held
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current token
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the current token
func (s *TokenStore) Clear() {
	s.Set("")
}

// Valid reports whether a token is held
func (s *TokenStore) Valid() bool {
	return s.Get() != ""
}

