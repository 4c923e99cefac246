// Package store provides SQLite-backed persistence for the latest chain
// snapshot per symbol and for per-symbol notes.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/OUgly/GEXCalculator/internal/chain"
)

// Store wraps a SQLite database for all persistence operations.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the SQLite database at dbPath. An empty dbPath
// defaults to $TMPDIR/gexcalc/gex.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "gexcalc", "gex.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection and codec resources.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chains (
			symbol     TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL,
			spot       REAL NOT NULL,
			snapshot   BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			note       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_symbol ON notes(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores the snapshot as the latest chain for its symbol,
// replacing any previous entry. Older snapshots are not retained.
func (s *Store) SaveSnapshot(snap *chain.Snapshot) error {
	blob, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	compressed := s.enc.EncodeAll(blob, nil)

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO chains (symbol, fetched_at, spot, snapshot)
		VALUES (?,?,?,?)`,
		snap.Symbol, snap.FetchedAt.UnixNano(), snap.UnderlyingPrice, compressed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chain: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot for symbol, or nil when none
// exists.
func (s *Store) LoadSnapshot(symbol string) (*chain.Snapshot, error) {
	row := s.db.QueryRow(`SELECT snapshot FROM chains WHERE symbol = ?`, symbol)
	var compressed []byte
	err := row.Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return s.decodeCompressed(compressed)
}

// LoadAllSnapshots returns every stored snapshot, for cache warm starts.
func (s *Store) LoadAllSnapshots() ([]*chain.Snapshot, error) {
	rows, err := s.db.Query(`SELECT snapshot FROM chains`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chains: %w", err)
	}
	defer rows.Close()

	var snaps []*chain.Snapshot
	for rows.Next() {
		var compressed []byte
		if err := rows.Scan(&compressed); err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		snap, err := s.decodeCompressed(compressed)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *Store) decodeCompressed(compressed []byte) (*chain.Snapshot, error) {
	blob, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	snap, err := decodeSnapshot(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// nowFunc is swapped in tests to pin note timestamps.
var nowFunc = time.Now
