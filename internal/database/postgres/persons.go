package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/facematch"
)

const personColumns = `id, name, age, description, date_missing, contact, photo_path, embedding, model, dim, created_at`

// PersonRepository provides PostgreSQL-backed missing person storage.
type PersonRepository struct {
	pool *Pool
	dim  int
}

// NewPersonRepository creates a new PostgreSQL person repository.
// dim > 0 fixes the embedding dimension accepted by Put.
func NewPersonRepository(pool *Pool, dim int) *PersonRepository {
	return &PersonRepository{pool: pool, dim: dim}
}

// Put validates and inserts a record. The id comes from the BIGSERIAL sequence and is
// never reused.
func (r *PersonRepository) Put(ctx context.Context, meta database.PersonMetadata, embedding []float32, model string) (int64, error) {
	meta = database.NormalizeMetadata(meta)
	if err := database.ValidateMetadata(meta); err != nil {
		return 0, err
	}
	if err := database.ValidateEmbedding(embedding, r.dim); err != nil {
		return 0, err
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO missing_persons (name, age, description, date_missing, contact, photo_path, embedding, model, dim)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, $9)
		RETURNING id
	`,
		meta.Name, meta.AgeLabel, meta.Description, meta.DateMissing, meta.Contact, meta.PhotoPath,
		pgvector.NewVector(embedding), model, len(embedding),
	).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "insert person")
	}
	return id, nil
}

// Get retrieves a record by id.
func (r *PersonRepository) Get(ctx context.Context, id int64) (*database.PersonRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM missing_persons WHERE id = $1`, id)

	rec, err := scanPersonRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "person not found", apperr.FieldPersonID(id))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "get person", apperr.FieldPersonID(id))
	}
	return &rec, nil
}

// List returns records newest first, ties broken by id descending.
// Names are normalized before comparison (lowercase, no diacritics, dashes to spaces).
func (r *PersonRepository) List(ctx context.Context, opts database.ListOptions) ([]database.PersonRecord, error) {
	var limit sql.NullInt64
	if opts.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(opts.Limit), Valid: true}
	}

	// Use PostgreSQL LOWER + unaccent + REPLACE for comparison.
	// This matches the Go normalization in facematch.NormalizePersonName.
	rows, err := r.pool.Query(ctx, `
		SELECT `+personColumns+`
		FROM missing_persons
		WHERE $1 = '' OR LOWER(REPLACE(unaccent(name), '-', ' ')) LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, escapeLike(facematch.NormalizePersonName(opts.Name)), limit, max(opts.Offset, 0))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "list persons")
	}
	defer rows.Close()

	records := []database.PersonRecord{}
	for rows.Next() {
		rec, err := scanPersonRow(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "list persons")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "iterate persons")
	}
	return records, nil
}

// Count returns the total number of records stored.
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM missing_persons").Scan(&count); err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "count persons")
	}
	return count, nil
}

// SnapshotEncodings reads every encoding with a single statement, so the result is a
// consistent point-in-time view of committed inserts.
func (r *PersonRepository) SnapshotEncodings(ctx context.Context) ([]database.Encoding, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, embedding, model FROM missing_persons ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "snapshot encodings")
	}
	defer rows.Close()

	encodings := []database.Encoding{}
	for rows.Next() {
		var enc database.Encoding
		var vec pgvector.Vector
		if err := rows.Scan(&enc.PersonID, &vec, &enc.Model); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrStorage, "scan encoding")
		}
		enc.Embedding = vec.Slice()
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "iterate encodings")
	}
	return encodings, nil
}

// Close closes the connection pool.
func (r *PersonRepository) Close() error {
	return r.pool.Close()
}

func scanPersonRow(scanner interface{ Scan(...any) error }) (database.PersonRecord, error) {
	var rec database.PersonRecord
	var vec pgvector.Vector

	err := scanner.Scan(
		&rec.ID,
		&rec.Name,
		&rec.AgeLabel,
		&rec.Description,
		&rec.DateMissing,
		&rec.Contact,
		&rec.PhotoPath,
		&vec,
		&rec.Model,
		&rec.Dim,
		&rec.CreatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan person: %w", err)
	}

	rec.Embedding = vec.Slice()
	return rec, nil
}

var _ database.EncodingStore = (*PersonRepository)(nil)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes a name filter match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
