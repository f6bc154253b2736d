// Package history is a linear undo/redo log of accepted code snapshots.
//
// The cursor points at the entry currently displayed; -1 means the log is
// empty. Recording an entry after undoing discards every entry after the
// cursor.
package history

import "sync"

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []string
	cursor  int
}

// New returns an empty Store.
func New() *Store {
	return &Store{cursor: -1}
}

// Push truncates any entries after the cursor, appends code and moves the
// cursor to it.
func (s *Store) Push(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries[:s.cursor+1], code)
	s.cursor = len(s.entries) - 1
}

// Undo moves back one entry and returns it. ok is false when there is
// nothing to undo.
func (s *Store) Undo() (code string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= 0 {
		return "", false
	}
	s.cursor--
	return s.entries[s.cursor], true
}

// Redo moves forward one entry and returns it. ok is false at the newest entry.
func (s *Store) Redo() (code string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.entries)-1 {
		return "", false
	}
	s.cursor++
	return s.entries[s.cursor], true
}

// CanUndo reports whether an older entry exists before the cursor.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor > 0
}

// CanRedo reports whether a newer entry exists after the cursor.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor < len(s.entries)-1
}

// Current returns the entry under the cursor.
func (s *Store) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 {
		return "", false
	}
	return s.entries[s.cursor], true
}

// Cursor returns the index of the current entry, or -1 when empty.
func (s *Store) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the log.
func (s *Store) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

// Reset empties the log.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.cursor = -1
}

// Load replaces the log with entries and points the cursor at the last one.
func (s *Store) Load(entries ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]string(nil), entries...)
	s.cursor = len(s.entries) - 1
}
