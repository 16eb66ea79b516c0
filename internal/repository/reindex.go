package repository

import (
	"context"
	"time"

	"github.com/eslsoft/audiolink/internal/entity"
)

// ReindexNotifier schedules a sentence and its translations for search-index
// refresh. Implementations must be idempotent and durable.
type ReindexNotifier interface {
	FlagForReindex(ctx context.Context, sentenceID int64) error
}

// ReindexOutbox records reindex triggers inside the write transaction so a
// trigger owed for a committed write survives a failed or interrupted dispatch.
type ReindexOutbox interface {
	Enqueue(ctx context.Context, sentenceID int64) (int64, error)
	Ack(ctx context.Context, id int64) error
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]entity.PendingReindex, error)
}
