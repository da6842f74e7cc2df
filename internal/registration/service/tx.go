package service

import "context"

// StoreTx runs a function inside a storage transaction. The SQL
// implementation lives in cmd/server where the database handle is wired;
// memory stores use the passthrough since each of their operations is
// already atomic under the store mutex.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

// NewPassthroughTx returns a StoreTx that simply invokes fn. Pair it with
// the in-memory stores.
func NewPassthroughTx() StoreTx {
	return passthroughTx{}
}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
