package dbx

import (
	"context"
	"database/sql"
	"time"

	"github.com/sethvargo/go-retry"
)

// SerializableRetries bounds how many times a transaction aborted by a
// serialization failure is replayed before the error is returned.
const SerializableRetries = 3

var serializableBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(SerializableRetries, retry.WithJitter(10*time.Millisecond, retry.NewExponential(20*time.Millisecond)))
}

// WithSerializableTx runs fn inside a SERIALIZABLE transaction. When the
// database aborts the transaction with a serialization failure or deadlock,
// the whole fn is replayed in a fresh transaction. Any other error is
// returned as is.
//
// fn must be safe to replay: it should not publish side effects outside the
// transaction.
func WithSerializableTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	return retry.Do(ctx, serializableBackoff(), func(ctx context.Context) error {
		err := WithTx(ctx, db, opts, fn)
		if IsSerializationFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
