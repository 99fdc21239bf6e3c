package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Session is a bearer token handed to a signed-in profile.
type Session struct {
	Token     string    `json:"token"`
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionEntry struct {
	profileID string
	expiresAt time.Time
}

// sessions keeps only token digests; a leaked map does not leak bearer tokens.
type sessions struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
}

func newSessions() *sessions {
	return &sessions{entries: map[string]sessionEntry{}}
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *sessions) issue(profileID string, now time.Time, ttl time.Duration) (Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	expires := now.Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now)
	s.entries[tokenDigest(token)] = sessionEntry{profileID: profileID, expiresAt: expires}
	return Session{Token: token, ProfileID: profileID, ExpiresAt: expires}, nil
}

func (s *sessions) lookup(token string, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenDigest(token)
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if !now.Before(e.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.profileID, true
}

func (s *sessions) revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tokenDigest(token)
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// revokeProfile drops every session of a profile except keep, e.g. after a
// password reset. An empty keep drops them all.
func (s *sessions) revokeProfile(profileID, keep string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := ""
	if keep != "" {
		kept = tokenDigest(keep)
	}
	n := 0
	for k, e := range s.entries {
		if e.profileID == profileID && k != kept {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *sessions) prune(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
