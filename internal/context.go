package internal

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ctxKey string

const (
	ContextUserKey ctxKey = "actorID"
	contextTxKey   ctxKey = "tx"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(ContextUserKey).(string); ok {
		return userID
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// ContextWithTx carries an open transaction so repositories reached through
// ctx join it instead of opening their own.
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, contextTxKey, tx)
}

// ContextWithoutTx hides any transaction carried by ctx.
func ContextWithoutTx(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextTxKey, (*gorm.DB)(nil))
}

// DBFromContext returns the transaction carried by ctx, or db when there is none.
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
