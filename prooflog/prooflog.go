// Package prooflog persists found proofs to a local SQLite database. The
// core keeps no state; this is the external proof log the miner layer may
// carry.
package prooflog

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cyberia-to/universal-hash/miner"
	"github.com/cyberia-to/universal-hash/types"
)

type Store struct {
	db *sql.DB
}

// Entry is one persisted proof with its session context.
type Entry struct {
	ID          int64      `json:"id"`
	Seed        types.Hash `json:"seed"`
	Address     string     `json:"address"`
	Hash        types.Hash `json:"hash"`
	Nonce       uint64     `json:"nonce"`
	Timestamp   uint64     `json:"timestamp"`
	HashesTried uint64     `json:"hashes_tried"`
	ElapsedNs   uint64     `json:"elapsed_ns"`
	CreatedUnix int64      `json:"created_unix"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("prooflog: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "prooflog: create directory")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "prooflog: open")
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "prooflog: ping")
	}
	if err = ensureTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS proofs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed BLOB NOT NULL,
			address TEXT NOT NULL,
			hash BLOB NOT NULL,
			nonce INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			hashes_tried INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			created_unix INTEGER NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prooflog: ensure tables")
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS proofs_seed_idx ON proofs (seed)`); err != nil {
		return errors.Wrap(err, "prooflog: ensure index")
	}
	return nil
}

// Append records a drained proof. Proofs are immutable once created; the
// log is append-only.
func (s *Store) Append(address string, p miner.Proof) error {
	_, err := s.db.Exec(
		`INSERT INTO proofs (seed, address, hash, nonce, timestamp, hashes_tried, elapsed_ns, created_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Seed[:], address, p.Hash[:],
		int64(p.Nonce), int64(p.Timestamp), int64(p.HashesTried), int64(p.ElapsedNs),
		time.Now().Unix(),
	)
	return errors.Wrap(err, "prooflog: append")
}

// Recent returns up to limit proofs, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, seed, address, hash, nonce, timestamp, hashes_tried, elapsed_ns, created_unix
		 FROM proofs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "prooflog: recent")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var nonce, timestamp, tried, elapsed int64
		if err = rows.Scan(&e.ID, &e.Seed, &e.Address, &e.Hash, &nonce, &timestamp, &tried, &elapsed, &e.CreatedUnix); err != nil {
			return nil, errors.Wrap(err, "prooflog: scan")
		}
		e.Nonce = uint64(nonce)
		e.Timestamp = uint64(timestamp)
		e.HashesTried = uint64(tried)
		e.ElapsedNs = uint64(elapsed)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "prooflog: rows")
}

// Count reports the number of persisted proofs.
func (s *Store) Count() (n int64, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*) FROM proofs`).Scan(&n)
	return n, errors.Wrap(err, "prooflog: count")
}

func (s *Store) Close() error {
	return s.db.Close()
}
