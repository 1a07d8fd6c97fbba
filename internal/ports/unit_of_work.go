package ports

import "context"

// Tx is the transaction handle a UnitOfWork stores in context. Its concrete
// type belongs to the persistence adapter (*gorm.DB for the sql stores).
type Tx interface{}

// UnitOfWork runs fn inside one transaction: a non-nil error rolls back,
// nil commits. Repositories pick the handle up via TxFromContext.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns nil outside WithTx.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
