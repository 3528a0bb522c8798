// Package sqlite implements the EncodingStore on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
)

func init() {
	database.RegisterBackend(database.BackendSQLite, func(_ context.Context, cfg *config.Config, dim int) (database.EncodingStore, error) {
		return NewPersonStore(cfg.SQLite.Path, dim)
	})
}

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Compile-time interface check.
var _ database.EncodingStore = (*PersonStore)(nil)

// PersonStore implements database.EncodingStore backed by SQLite.
type PersonStore struct {
	db  *sql.DB
	dim int
	now func() time.Time
}

// NewPersonStore opens (or creates) a SQLite database at dbPath and
// initialises the missing_persons table.
func NewPersonStore(dbPath string, dim int) (*PersonStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &PersonStore{db: db, dim: dim, now: time.Now}, nil
}

// AUTOINCREMENT keeps ids from ever being reused, even after the highest row is gone.
func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS missing_persons (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	age           TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	date_missing  TEXT NOT NULL DEFAULT '',
	contact       TEXT NOT NULL DEFAULT '',
	photo_path    TEXT NOT NULL DEFAULT '',
	face_encoding TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	dim           INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_missing_persons_created ON missing_persons(created_at DESC, id DESC);
`
	_, err := db.Exec(ddl)
	return err
}

// Put validates and inserts a record.
func (s *PersonStore) Put(ctx context.Context, meta database.PersonMetadata, embedding []float32, model string) (int64, error) {
	meta = database.NormalizeMetadata(meta)
	if err := database.ValidateMetadata(meta); err != nil {
		return 0, err
	}
	if err := database.ValidateEmbedding(embedding, s.dim); err != nil {
		return 0, err
	}

	encoded, err := json.Marshal(embedding)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "encode embedding")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO missing_persons (name, age, description, date_missing, contact, photo_path, face_encoding, model, dim, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Name, meta.AgeLabel, meta.Description, meta.DateMissing, meta.Contact, meta.PhotoPath,
		string(encoded), model, len(embedding), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "insert person")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "read inserted id")
	}
	return id, nil
}

const personColumns = `id, name, age, description, date_missing, contact, photo_path, face_encoding, model, dim, created_at`

// Get retrieves a record by id.
func (s *PersonStore) Get(ctx context.Context, id int64) (*database.PersonRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM missing_persons WHERE id = ?`, id)

	rec, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "person not found", apperr.FieldPersonID(id))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "get person", apperr.FieldPersonID(id))
	}
	return &rec, nil
}

// List returns records newest first. Without a name filter paging happens in SQL;
// with one the rows are filtered in Go because SQLite has no unaccent.
func (s *PersonStore) List(ctx context.Context, opts database.ListOptions) ([]database.PersonRecord, error) {
	query := `SELECT ` + personColumns + ` FROM missing_persons ORDER BY created_at DESC, id DESC`
	var args []any
	if opts.Name == "" {
		limit := -1 // SQLite: negative LIMIT means no limit
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(opts.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "list persons")
	}
	defer rows.Close()

	records := []database.PersonRecord{}
	for rows.Next() {
		rec, err := scanPerson(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "list persons")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "iterate persons")
	}

	if opts.Name == "" {
		return records, nil
	}
	return database.FilterAndPage(records, opts), nil
}

// Count returns the total number of records stored.
func (s *PersonStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missing_persons`).Scan(&count); err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "count persons")
	}
	return count, nil
}

// SnapshotEncodings reads every encoding in one statement.
func (s *PersonStore) SnapshotEncodings(ctx context.Context) ([]database.Encoding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, face_encoding, model FROM missing_persons ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "snapshot encodings")
	}
	defer rows.Close()

	encodings := []database.Encoding{}
	for rows.Next() {
		var enc database.Encoding
		var raw string
		if err := rows.Scan(&enc.PersonID, &raw, &enc.Model); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "scan encoding")
		}
		if err := json.Unmarshal([]byte(raw), &enc.Embedding); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "decode embedding", apperr.FieldPersonID(enc.PersonID))
		}
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "iterate encodings")
	}
	return encodings, nil
}

// Close closes the database.
func (s *PersonStore) Close() error {
	return s.db.Close()
}

func scanPerson(scanner interface{ Scan(...any) error }) (database.PersonRecord, error) {
	var rec database.PersonRecord
	var raw, createdAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.Name,
		&rec.AgeLabel,
		&rec.Description,
		&rec.DateMissing,
		&rec.Contact,
		&rec.PhotoPath,
		&raw,
		&rec.Model,
		&rec.Dim,
		&createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan person: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &rec.Embedding); err != nil {
		return rec, fmt.Errorf("decode embedding of person %d: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return rec, fmt.Errorf("parse created_at of person %d: %w", rec.ID, err)
	}
	return rec, nil
}
