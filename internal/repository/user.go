package repository

import "context"

// UserDirectory resolves registered contributors.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (id int64, found bool, err error)
}
