package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrTxTimeout reports a transaction aborted because its deadline passed.
var ErrTxTimeout = errors.New("db: transaction timed out")

// WithTimeout runs fn inside a transaction bounded by timeout. Any error, including
// the deadline, rolls every statement back.
func WithTimeout(ctx context.Context, conn *gorm.DB, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	errTx := conn.WithContext(ctx).Transaction(fn)
	if errTx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTxTimeout, errTx)
	}
	return errTx
}
