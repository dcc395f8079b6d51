// Package memory holds per-session chat history and the summarizer that
// keeps prompts bounded.
package memory

import (
	"strings"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	// keepRecent is how many trailing messages survive summarization
	// verbatim.
	keepRecent = 5
	// summaryMaxChars bounds the synthetic summary content.
	summaryMaxChars = 300
)

// Store keeps chat messages per session id, in memory. Sessions are created
// implicitly on first Add.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]models.Message
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]models.Message)}
}

// Add appends a message to the session's history.
func (s *Store) Add(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], models.Message{Role: role, Content: content})
}

// Messages returns a copy of the session's history, empty when the session is
// unknown.
func (s *Store) Messages(sessionID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Exists reports whether the session has any history.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Reset drops the session's history. Returns false when the session is
// unknown.
func (s *Store) Reset(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Sessions returns the number of live sessions.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Summarize compresses a history down to one synthetic system summary plus
// the last 5 messages verbatim. Histories of 5 messages or fewer pass
// through unchanged. Older context degrades to a 300-character blurb; this
// lossiness is an accepted tradeoff, not a bug.
func Summarize(messages []models.Message) []models.Message {
	return SummarizeWith(messages, keepRecent, summaryMaxChars)
}

// SummarizeWith is Summarize with explicit limits. Non-positive limits fall
// back to the defaults.
func SummarizeWith(messages []models.Message, keep, maxChars int) []models.Message {
	if keep <= 0 {
		keep = keepRecent
	}
	if maxChars <= 0 {
		maxChars = summaryMaxChars
	}
	if len(messages) <= keep {
		return messages
	}
	older := messages[:len(messages)-keep]
	parts := make([]string, len(older))
	for i, m := range older {
		parts[i] = m.Content
	}
	summary := "Conversation summary: " + utils.Truncate(strings.Join(parts, " "), maxChars)

	out := make([]models.Message, 0, keep+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: summary})
	out = append(out, messages[len(messages)-keep:]...)
	return out
}
