package dbx

import (
	"context"
	"database/sql"
	"time"

	"github.com/sethvargo/go-retry"
)

// PingWithBackoff waits until db answers a ping or the timeout elapses.
// Useful on container start-up when the database comes up after the service.
func PingWithBackoff(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	b := retry.WithMaxDuration(timeout, retry.WithCappedDuration(5*time.Second, retry.NewExponential(500*time.Millisecond)))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
