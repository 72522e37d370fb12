package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/evolve/internal/schema"
)

// ErrNotFound is returned when no schema matches a lookup.
var ErrNotFound = errors.New("schema not found")

// Entry is one registered schema version.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Canonical   string `json:"canonical"`
	Source      string `json:"source,omitempty"`
	Seq         int64  `json:"seq"`
}

// NewEntry builds an unregistered entry for type name of a compiled
// package. Source is the CUE text the package was compiled from; Load
// recompiles it.
func NewEntry(name string, n *schema.Node, source string) (Entry, error) {
	canonical, err := schema.Canonical(n)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry %s: %w", name, err)
	}
	fp, err := schema.Fingerprint(n)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry %s: %w", name, err)
	}
	return Entry{Fingerprint: fp, Name: name, Canonical: string(canonical), Source: source}, nil
}

// Load compiles the entry's source and returns its named type. It fails
// when the recompiled type no longer matches the stored fingerprint.
func (e Entry) Load() (*schema.Node, error) {
	pkg, err := schema.CompileSource(e.Name+".cue", []byte(e.Source))
	if err != nil {
		return nil, fmt.Errorf("load %s v%d: %w", e.Name, e.Version, err)
	}
	n, ok := pkg.Lookup(e.Name)
	if !ok {
		return nil, fmt.Errorf("load %s v%d: type not declared in stored source", e.Name, e.Version)
	}
	fp, err := schema.Fingerprint(n)
	if err != nil {
		return nil, fmt.Errorf("load %s v%d: %w", e.Name, e.Version, err)
	}
	if fp != e.Fingerprint {
		return nil, fmt.Errorf("load %s v%d: fingerprint mismatch: stored %s, compiled %s", e.Name, e.Version, e.Fingerprint, fp)
	}
	return n, nil
}

// Register stores e and returns it with Version and Seq assigned.
//
// Registration is idempotent on fingerprint: registering a graph that is
// already present returns the existing entry unchanged, whatever name it
// was first registered under.
func (s *Store) Register(ctx context.Context, e Entry) (Entry, error) {
	if e.Fingerprint == "" || e.Name == "" {
		return Entry{}, fmt.Errorf("register: fingerprint and name are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("register: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanEntry(tx.QueryRowContext(ctx, selectEntry+` WHERE fingerprint = ?`, e.Fingerprint))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Entry{}, fmt.Errorf("register: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM schemas WHERE name = ?`, e.Name,
	).Scan(&e.Version); err != nil {
		return Entry{}, fmt.Errorf("register: next version: %w", err)
	}
	if e.Seq, err = nextSeq(ctx, tx); err != nil {
		return Entry{}, fmt.Errorf("register: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schemas (fingerprint, name, version, canonical, source, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Fingerprint, e.Name, e.Version, e.Canonical, e.Source, e.Seq)
	if err != nil {
		return Entry{}, fmt.Errorf("register: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("register: commit: %w", err)
	}
	return e, nil
}

// Lookup returns the entry with the given fingerprint.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+` WHERE fingerprint = ?`, fingerprint))
	if err != nil {
		return Entry{}, fmt.Errorf("lookup %s: %w", fingerprint, err)
	}
	return e, nil
}

// Latest returns the highest version registered under name.
func (s *Store) Latest(ctx context.Context, name string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		selectEntry+` WHERE name = ? ORDER BY version DESC LIMIT 1`, name))
	if err != nil {
		return Entry{}, fmt.Errorf("latest %s: %w", name, err)
	}
	return e, nil
}

// History returns every version registered under name, oldest first.
// Returns an empty slice (not nil) when the name is unknown.
func (s *Store) History(ctx context.Context, name string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntry+` WHERE name = ? ORDER BY version ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

const selectEntry = `SELECT fingerprint, name, version, canonical, source, seq FROM schemas`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	err := row.Scan(&e.Fingerprint, &e.Name, &e.Version, &e.Canonical, &e.Source, &e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan schema: %w", err)
	}
	return e, nil
}
