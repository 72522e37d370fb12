package store

import (
	"context"
	"fmt"
)

// Resolution is a grammar recorded for a registered (writer, reader) pair.
type Resolution struct {
	WriterFingerprint string `json:"writer_fingerprint"`
	ReaderFingerprint string `json:"reader_fingerprint"`
	Grammar           string `json:"grammar"`  // symbol.Dump output
	Deferred          int    `json:"deferred"` // error symbols embedded in the grammar
	Seq               int64  `json:"seq"`
}

// RecordResolution stores r. Both schemas must already be registered.
// The first recording of a pair wins; later ones are ignored, since a
// grammar is a pure function of its two schemas.
func (s *Store) RecordResolution(ctx context.Context, r Resolution) (Resolution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("record resolution: begin: %w", err)
	}
	defer tx.Rollback()

	if r.Seq, err = nextSeq(ctx, tx); err != nil {
		return Resolution{}, fmt.Errorf("record resolution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resolutions (writer_fp, reader_fp, grammar, deferred, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(writer_fp, reader_fp) DO NOTHING
	`, r.WriterFingerprint, r.ReaderFingerprint, r.Grammar, r.Deferred, r.Seq)
	if err != nil {
		return Resolution{}, fmt.Errorf("record resolution: insert: %w", err)
	}

	var stored Resolution
	err = tx.QueryRowContext(ctx, `
		SELECT writer_fp, reader_fp, grammar, deferred, seq
		FROM resolutions
		WHERE writer_fp = ? AND reader_fp = ?
	`, r.WriterFingerprint, r.ReaderFingerprint).Scan(
		&stored.WriterFingerprint, &stored.ReaderFingerprint, &stored.Grammar, &stored.Deferred, &stored.Seq)
	if err != nil {
		return Resolution{}, fmt.Errorf("record resolution: read back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Resolution{}, fmt.Errorf("record resolution: commit: %w", err)
	}
	return stored, nil
}

// ReadersOf returns the resolutions recorded with writerFP as the writer,
// ordered by seq.
func (s *Store) ReadersOf(ctx context.Context, writerFP string) ([]Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT writer_fp, reader_fp, grammar, deferred, seq
		FROM resolutions
		WHERE writer_fp = ?
		ORDER BY seq ASC
	`, writerFP)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	out := []Resolution{}
	for rows.Next() {
		var r Resolution
		if err := rows.Scan(&r.WriterFingerprint, &r.ReaderFingerprint, &r.Grammar, &r.Deferred, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return out, nil
}
