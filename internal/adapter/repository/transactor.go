package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"

	"github.com/eslsoft/audiolink/internal/repository"
)

// NewStores binds every store to the same driver or transaction.
func NewStores(q dialect.ExecQuerier, dialectName string) repository.Stores {
	return repository.Stores{
		Audios: NewAudioRepository(q, dialectName),
		Users:  NewUserDirectory(q, dialectName),
		Outbox: NewReindexOutbox(q, dialectName),
	}
}

// NewDriverStores binds the stores to drv outside of any transaction.
func NewDriverStores(drv dialect.Driver) repository.Stores {
	return NewStores(drv, drv.Dialect())
}

type transactor struct {
	drv dialect.Driver
}

// NewTransactor runs units of work in database transactions of drv.
func NewTransactor(drv dialect.Driver) repository.Transactor {
	return &transactor{drv: drv}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Stores) error) error {
	tx, err := t.drv.Tx(ctx)
	if err != nil {
		return translateError("begin transaction", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(ctx, NewStores(tx, t.drv.Dialect())); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateError("commit transaction", err)
	}
	return nil
}
