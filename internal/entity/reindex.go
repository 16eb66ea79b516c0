package entity

import "time"

// PendingReindex is an outbox entry: a reindex trigger that was committed
// together with an audio write but not yet confirmed as delivered.
type PendingReindex struct {
	ID         int64
	SentenceID int64
	CreatedAt  time.Time
}
