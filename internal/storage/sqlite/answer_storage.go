package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

var (
	// ErrValidation is returned when a write would violate the completeness
	// invariant (empty critical field). The row is left untouched.
	ErrValidation = errors.New("answer validation failed")

	// ErrNotFound is returned when no row exists for the given source URL.
	ErrNotFound = errors.New("answer not found")
)

// pendingWhere selects rows whose critical fields are not both populated.
// NULL and empty string are equally "missing" so that no partially written
// historical data can hide a pending record.
const pendingWhere = `(title_text IS NULL OR title_text = '' OR body_text IS NULL OR body_text = '')`

// AnswerStorage implements interfaces.AnswerStorage on SQLite
type AnswerStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewAnswerStorage creates an answer storage backed by the given connection
func NewAnswerStorage(db *SQLiteDB, logger arbor.ILogger) *AnswerStorage {
	return &AnswerStorage{
		db:     db,
		logger: logger,
	}
}

var _ interfaces.AnswerStorage = (*AnswerStorage)(nil)

// UpsertPending inserts a bare record for sourceURL if absent.
// INSERT OR IGNORE keeps collection restartable: re-running a partial
// collection is a no-op for keys already present.
func (s *AnswerStorage) UpsertPending(ctx context.Context, sourceURL string) (bool, error) {
	if sourceURL == "" {
		return false, fmt.Errorf("%w: empty source_url", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO answers (source_url) VALUES (?)`, sourceURL)
	if err != nil {
		return false, fmt.Errorf("failed to insert answer link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rows > 0, nil
}

// ListPendingKeys returns the source URLs of all incomplete records in insertion order
func (s *AnswerStorage) ListPendingKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT source_url FROM answers WHERE `+pendingWhere+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan pending key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending keys: %w", err)
	}

	s.logger.Debug().Int("count", len(keys)).Msg("Retrieved pending keys")
	return keys, nil
}

// CompleteRecord fills the remaining fields of one record inside a transaction.
// Empty critical fields are rejected before the row is touched; a draft with a
// missing title or body must be discarded, never stored.
func (s *AnswerStorage) CompleteRecord(ctx context.Context, sourceURL string, fields models.AnswerFields) error {
	if fields.TitleText == "" || fields.BodyText == "" {
		return fmt.Errorf("%w: title_text and body_text must be non-empty for %s", ErrValidation, sourceURL)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE answers
		SET detail_url = ?, title_text = ?, body_text = ?,
		    revision_url = ?, raw_timestamp = ?, parsed_timestamp = ?
		WHERE source_url = ?`,
		nullable(fields.DetailURL),
		fields.TitleText,
		fields.BodyText,
		nullable(fields.RevisionURL),
		nullable(fields.RawTimestamp),
		nullableTime(fields.ParsedTimestamp),
		sourceURL)
	if err != nil {
		return fmt.Errorf("failed to update answer data: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Str("source_url", sourceURL).Msg("Answer record completed")
	return nil
}

// GetAnswer returns the stored record for sourceURL, or nil if absent
func (s *AnswerStorage) GetAnswer(ctx context.Context, sourceURL string) (*models.Answer, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, source_url, detail_url, title_text, body_text,
		       revision_url, raw_timestamp, parsed_timestamp
		FROM answers WHERE source_url = ?`, sourceURL)

	var a models.Answer
	var detailURL, titleText, bodyText, revisionURL, rawTS, parsedTS sql.NullString
	err := row.Scan(&a.ID, &a.SourceURL, &detailURL, &titleText, &bodyText, &revisionURL, &rawTS, &parsedTS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan answer: %w", err)
	}

	a.DetailURL = detailURL.String
	a.TitleText = titleText.String
	a.BodyText = bodyText.String
	a.RevisionURL = revisionURL.String
	a.RawTimestamp = rawTS.String
	if parsedTS.Valid && parsedTS.String != "" {
		if t, err := time.Parse(time.RFC3339, parsedTS.String); err == nil {
			a.ParsedTimestamp = &t
		}
	}

	return &a, nil
}

// CountComplete returns the number of complete records
func (s *AnswerStorage) CountComplete(ctx context.Context) (int, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE NOT `+pendingWhere).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count complete answers: %w", err)
	}
	return count, nil
}

// CountTotal returns the total number of records
func (s *AnswerStorage) CountTotal(ctx context.Context) (int, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

// Close releases the underlying connection
func (s *AnswerStorage) Close() error {
	return s.db.Close()
}

// nullable maps an empty string to SQL NULL
func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// nullableTime stores a timestamp as RFC3339 text with its zone offset.
// SQLite has no timestamptz type; explicit offset text keeps the source zone
// recoverable and sorts correctly.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
