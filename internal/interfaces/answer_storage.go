package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// AnswerStorage persists collected answer records.
//
// Every mutating call runs inside its own transaction: it commits on success
// and rolls back entirely on any error, so a concurrent reader never observes
// a half-written row.
type AnswerStorage interface {
	// UpsertPending inserts a bare record for sourceURL if absent.
	// Returns true when a new row was created, false when the key already existed.
	UpsertPending(ctx context.Context, sourceURL string) (bool, error)

	// ListPendingKeys returns the source URLs of all records that are not yet
	// complete, in insertion order.
	ListPendingKeys(ctx context.Context) ([]string, error)

	// CompleteRecord fills the remaining fields of the record identified by
	// sourceURL. Empty title or body is rejected with a validation error and
	// the row is left untouched.
	CompleteRecord(ctx context.Context, sourceURL string, fields models.AnswerFields) error

	// GetAnswer returns the stored record for sourceURL, or nil if absent.
	GetAnswer(ctx context.Context, sourceURL string) (*models.Answer, error)

	// CountComplete returns the number of complete records.
	CountComplete(ctx context.Context) (int, error)

	// CountTotal returns the total number of records.
	CountTotal(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}
