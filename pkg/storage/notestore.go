package storage

import (
	"strings"
	"sync"

	"sharednotes/pkg/models"
)

// NoteStore holds the notes visible to the current user in memory.
// Notes keep the order the backend listed them in; created notes are
// appended. Callers always receive copies.
type NoteStore struct {
	mutex sync.RWMutex
	notes map[string]*models.Note
	order []string
}

// NewNoteStore creates an empty note store
func NewNoteStore() *NoteStore {
	return &NoteStore{
		notes: make(map[string]*models.Note),
	}
}

// Replace swaps the whole collection for notes
func (s *NoteStore) Replace(notes []*models.Note) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.notes = make(map[string]*models.Note, len(notes))
	s.order = make([]string, 0, len(notes))
	for _, n := range notes {
		if n == nil {
			continue
		}
		if _, dup := s.notes[n.ID]; !dup {
			s.order = append(s.order, n.ID)
		}
		s.notes[n.ID] = n.Clone()
	}
}

// Add appends a note, replacing any note with the same id in place
func (s *NoteStore) Add(note *models.Note) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.notes[note.ID]; !exists {
		s.order = append(s.order, note.ID)
	}
	s.notes[note.ID] = note.Clone()
}

// Apply sets a note's title and body. It reports whether the note is held.
func (s *NoteStore) Apply(id, title, body string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, ok := s.notes[id]
	if !ok {
		return false
	}
	n.Title = title
	n.Body = body
	return true
}

// SetEncryption replaces a note's body, encryption flag and the current
// user's key. It reports whether the note is held.
func (s *NoteStore) SetEncryption(id, body string, encrypted bool, key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, ok := s.notes[id]
	if !ok {
		return false
	}
	n.Body = body
	n.IsEncrypted = encrypted
	n.EncryptionKey = key
	return true
}

// Remove drops a note. It reports whether the note was held.
func (s *NoteStore) Remove(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.notes[id]; !ok {
		return false
	}
	delete(s.notes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of a note
func (s *NoteStore) Get(id string) (*models.Note, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// GetAllNotes returns every note in collection order
func (s *NoteStore) GetAllNotes() []*models.Note {
	return s.filter(func(*models.Note) bool { return true })
}

// MyNotes returns the notes the current user owns
func (s *NoteStore) MyNotes() []*models.Note {
	return s.filter((*models.Note).IsOwned)
}

// SharedNotes returns the notes others shared with the current user
func (s *NoteStore) SharedNotes() []*models.Note {
	return s.filter(func(n *models.Note) bool { return !n.IsOwned() })
}

// SearchNotes returns the notes whose title or body contains query
func (s *NoteStore) SearchNotes(query string) []*models.Note {
	query = strings.ToLower(query)
	return s.filter(func(n *models.Note) bool {
		return strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(strings.ToLower(n.Body), query)
	})
}

// Len returns the number of notes held
func (s *NoteStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.notes)
}

// ClearAllNotes empties the store
func (s *NoteStore) ClearAllNotes() {
	s.Replace(nil)
}

func (s *NoteStore) filter(keep func(*models.Note) bool) []*models.Note {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*models.Note, 0, len(s.order))
	for _, id := range s.order {
		n := s.notes[id]
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	return out
}
