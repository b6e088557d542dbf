// Package timeline keeps the in-memory conversation timeline: the ordered
// chat messages for the current conversation plus the tool artifacts
// (search results, loaded resumes, edit diffs) attached to them.
//
// While a run streams, its assistant message lives under PlaceholderID.
// Finalization rebinds the placeholder to the real message id; artifacts
// upserted against the placeholder move with it.
package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cvforge/cvforge/internal/toolcall"
)

// PlaceholderID keys the assistant message of the in-flight run before a
// real id exists.
const PlaceholderID = "current"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one timeline entry with its attached tool artifacts.
type Message struct {
	ID        string
	Role      string
	Text      string
	Thought   string
	CreatedAt time.Time

	Search       *toolcall.SearchResult
	LoadedResume map[string]any
	EditDiffs    []toolcall.ResumeEditDiff
}

// Store is the conversation timeline. Safe for concurrent use: the engine
// goroutine writes while the UI reads.
type Store struct {
	mu       sync.RWMutex
	order    []string
	messages map[string]*Message
}

// NewStore returns an empty timeline.
func NewStore() *Store {
	return &Store{messages: make(map[string]*Message)}
}

// NewMessageID returns a fresh real message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// Append adds a message at the end of the timeline. An existing message
// with the same id is replaced in place, keeping its position.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if _, ok := s.messages[msg.ID]; !ok {
		s.order = append(s.order, msg.ID)
	}
	s.messages[msg.ID] = &msg
}

// SetContent updates the text channels of a message, creating the entry if
// needed. Used for the streaming placeholder message.
func (s *Store) SetContent(id, thought, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.ensureLocked(id)
	m.Thought = thought
	m.Text = text
}

// Get returns a copy of the message, and whether it exists.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Messages returns the timeline in order. The returned slice holds copies.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.messages[id])
	}
	return out
}

// Rebind remaps every entry keyed by oldID to newID. The identifier-
// remapping pass that commits a finalized run: artifacts upserted against
// the placeholder follow the message to its real id. No-op when oldID is
// absent or the ids are equal.
func (s *Store) Rebind(oldID, newID string) {
	if oldID == newID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[oldID]
	if !ok {
		return
	}
	delete(s.messages, oldID)
	m.ID = newID
	s.messages[newID] = m
	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
		}
	}
}

// Drop removes a message from the timeline, if present.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return
	}
	delete(s.messages, id)
	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// UpsertSearchResult attaches search results to a message.
func (s *Store) UpsertSearchResult(messageID string, data toolcall.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(messageID).Search = &data
}

// UpsertLoadedResume attaches a loaded resume reference to a message.
func (s *Store) UpsertLoadedResume(messageID string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(messageID).LoadedResume = data
}

// UpsertResumeEditDiff records an edit diff against a message.
func (s *Store) UpsertResumeEditDiff(messageID string, data toolcall.ResumeEditDiff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.ensureLocked(messageID)
	m.EditDiffs = append(m.EditDiffs, data)
}

func (s *Store) ensureLocked(id string) *Message {
	m, ok := s.messages[id]
	if !ok {
		m = &Message{ID: id, Role: RoleAssistant, CreatedAt: time.Now()}
		s.messages[id] = m
		s.order = append(s.order, id)
	}
	return m
}
