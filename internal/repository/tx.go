package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNoTransaction is returned by row-locking reads called outside
// WithinTransaction.
var ErrNoTransaction = errors.New("row lock requires a transaction")

type txKey struct{}

// TxManager runs a function inside one database transaction. Repositories
// pick the transaction up from the context, so every store touched by fn
// commits or rolls back together.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type GormTxManager struct{ db *gorm.DB }

func NewTxManager(db *gorm.DB) TxManager { return &GormTxManager{db: db} }

func (m *GormTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

func inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
