package store

import (
	"fmt"
	"strings"
	"time"
)

// Note is one annotation on a symbol. Notes are immutable once created;
// editing is delete plus add.
type Note struct {
	ID        int64
	Symbol    string
	Text      string
	CreatedAt time.Time
}

// ErrNoteNotFound is returned when deleting an id that does not exist.
var ErrNoteNotFound = fmt.Errorf("note not found")

// AddNote appends a note for symbol. The symbol key is upper-cased so
// lookups are casing-independent.
func (s *Store) AddNote(symbol, text string) (*Note, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	createdAt := nowFunc().UTC()

	res, err := s.db.Exec(`
		INSERT INTO notes (symbol, note, created_at) VALUES (?,?,?)`,
		symbol, text, createdAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read note id: %w", err)
	}
	return &Note{ID: id, Symbol: symbol, Text: text, CreatedAt: createdAt}, nil
}

// ListNotes returns the notes for symbol newest first. Insertion order breaks
// timestamp ties so the ordering is stable.
func (s *Store) ListNotes(symbol string) ([]Note, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rows, err := s.db.Query(`
		SELECT id, symbol, note, created_at FROM notes
		WHERE symbol = ? ORDER BY created_at DESC, id DESC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var createdAtNano int64
		if err := rows.Scan(&n.ID, &n.Symbol, &n.Text, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = time.Unix(0, createdAtNano).UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// DeleteNote removes a single note by id.
func (s *Store) DeleteNote(id int64) error {
	res, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNoteNotFound
	}
	return nil
}
