package repository

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Transactor runs a function inside one database transaction. Repository
// methods called with the context the function receives join that
// transaction, so a multi-write operation commits or rolls back as a unit.
// Nested calls join the enclosing transaction through a savepoint.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor instantiates the gorm-backed transactor.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbFromContext(ctx, t.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFromContext returns the transaction bound to ctx, or the fallback handle
// when the caller is not inside one.
func dbFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

// conn is the context-aware handle repositories issue their statements on.
func conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	return dbFromContext(ctx, fallback).WithContext(ctx)
}
