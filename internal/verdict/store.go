package verdict

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store is the verdict lookup/persist surface consumed by the dispatcher and
// the callback handlers.
type Store interface {
	LookupText(ctx context.Context, rawHash, normalizedHash string) (*TextVerdict, error)
	LookupImage(ctx context.Context, imageHash, imageURL string) (*ImageVerdict, error)
	PersistText(ctx context.Context, v TextVerdict) (*TextVerdict, error)
	PersistImage(ctx context.Context, v ImageVerdict) (*ImageVerdict, error)
	GetTextByID(ctx context.Context, id int64) (*TextVerdict, error)
	GetImageByID(ctx context.Context, id int64) (*ImageVerdict, error)
	DeleteTextByID(ctx context.Context, id int64) (*TextVerdict, error)
	DeleteImageByID(ctx context.Context, id int64) (*ImageVerdict, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPGStore creates a new Postgres-backed verdict store.
func NewPGStore(db *sql.DB, log *zap.Logger) *PGStore {
	return &PGStore{
		db:  db,
		log: log.With(zap.String("module", "verdict")),
	}
}

const (
	textColumns  = "id, text_hash, summary_hash, mark, reason, summary, confidence, urls, created_at"
	imageColumns = "id, image_hash, image_url, mark, reason, confidence, created_at"
)

// LookupText queries the raw hash first and the normalized hash second. Two
// ordered queries rather than one OR query: both hashes could independently
// match different rows, and the exact-text match must win.
func (s *PGStore) LookupText(ctx context.Context, rawHash, normalizedHash string) (*TextVerdict, error) {
	for _, hash := range []struct {
		column string
		value  string
	}{
		{"text_hash", rawHash},
		{"summary_hash", normalizedHash},
	} {
		if hash.value == "" {
			continue
		}
		row := s.db.QueryRowContext(ctx,
			"SELECT "+textColumns+" FROM text_results WHERE "+hash.column+" = $1 LIMIT 1",
			hash.value)
		v, err := scanText(row)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

// LookupImage queries the content hash first and the source URL second.
func (s *PGStore) LookupImage(ctx context.Context, imageHash, imageURL string) (*ImageVerdict, error) {
	for _, key := range []struct {
		column string
		value  string
	}{
		{"image_hash", imageHash},
		{"image_url", imageURL},
	} {
		if key.value == "" {
			continue
		}
		row := s.db.QueryRowContext(ctx,
			"SELECT "+imageColumns+" FROM image_results WHERE "+key.column+" = $1 LIMIT 1",
			key.value)
		v, err := scanImage(row)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

// PersistText inserts a text verdict and returns the stored row including its
// generated id.
func (s *PGStore) PersistText(ctx context.Context, v TextVerdict) (*TextVerdict, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO text_results (text_hash, summary_hash, mark, reason, summary, confidence, urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+textColumns,
		v.TextHash, v.SummaryHash, v.Mark, v.Reason, nullable(v.Summary), v.Confidence, pq.Array(v.URLs))
	return scanText(row)
}

// PersistImage inserts an image verdict and returns the stored row.
func (s *PGStore) PersistImage(ctx context.Context, v ImageVerdict) (*ImageVerdict, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO image_results (image_hash, image_url, mark, reason, confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+imageColumns,
		v.ImageHash, v.ImageURL, v.Mark, v.Reason, v.Confidence)
	return scanImage(row)
}

// GetTextByID fetches a text verdict by id, returning nil when absent.
func (s *PGStore) GetTextByID(ctx context.Context, id int64) (*TextVerdict, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+textColumns+" FROM text_results WHERE id = $1", id)
	v, err := scanText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// GetImageByID fetches an image verdict by id, returning nil when absent.
func (s *PGStore) GetImageByID(ctx context.Context, id int64) (*ImageVerdict, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM image_results WHERE id = $1", id)
	v, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// DeleteTextByID removes a text verdict so the content is re-verified on its
// next submission. Returns the deleted row, or nil when absent.
func (s *PGStore) DeleteTextByID(ctx context.Context, id int64) (*TextVerdict, error) {
	row := s.db.QueryRowContext(ctx,
		"DELETE FROM text_results WHERE id = $1 RETURNING "+textColumns, id)
	v, err := scanText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// DeleteImageByID removes an image verdict for the recheck flow.
func (s *PGStore) DeleteImageByID(ctx context.Context, id int64) (*ImageVerdict, error) {
	row := s.db.QueryRowContext(ctx,
		"DELETE FROM image_results WHERE id = $1 RETURNING "+imageColumns, id)
	v, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func scanText(row *sql.Row) (*TextVerdict, error) {
	var v TextVerdict
	var summary sql.NullString
	var urls pq.StringArray
	if err := row.Scan(&v.ID, &v.TextHash, &v.SummaryHash, &v.Mark, &v.Reason,
		&summary, &v.Confidence, &urls, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Summary = summary.String
	v.URLs = urls
	return &v, nil
}

func scanImage(row *sql.Row) (*ImageVerdict, error) {
	var v ImageVerdict
	if err := row.Scan(&v.ID, &v.ImageHash, &v.ImageURL, &v.Mark, &v.Reason,
		&v.Confidence, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
