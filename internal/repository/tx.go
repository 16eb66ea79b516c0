package repository

import "context"

// Stores groups the repositories that take part in a write transaction.
type Stores struct {
	Audios AudioRepository
	Users  UserDirectory
	Outbox ReindexOutbox
}

// Transactor runs fn inside a single write transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
