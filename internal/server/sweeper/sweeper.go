// Package sweeper expires Pending offers whose deadline has passed and lets
// the orchestrator cascade to the next ranked applicant.
package sweeper

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/allocator/internal/logging"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/offers"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/repomanager"
)

const DefaultBatchSize = 100

// Expirer expires a single offer. It reports false when the offer no longer
// needs expiring.
type Expirer interface {
	ExpireOffer(ctx context.Context, offerID string, now time.Time) (bool, error)
}

// Result summarizes one sweep cycle.
type Result struct {
	Due     int
	Expired int
	Skipped int
	Failed  int
}

type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	expirer     Expirer
	interval    time.Duration
	batchSize   int
	logger      logging.Logger
	now         func() time.Time
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, expirer Expirer, interval time.Duration, batchSize int, logger logging.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Sweeper{
		db:          db,
		repomanager: m,
		expirer:     expirer,
		interval:    interval,
		batchSize:   batchSize,
		logger:      logger.With("module", "sweeper"),
		now:         time.Now,
	}
}

// Sweep expires every offer that is due at now, paging through them
// batchSize at a time. A failure on one offer is logged and does not stop
// the others; the offer stays Pending and is picked up again by the next
// cycle.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	var (
		res   Result
		after *offers.Cursor
	)
	repo := s.repomanager.Offers(s.db)

	for {
		due, err := repo.ListExpired(ctx, now, after, s.batchSize)
		if err != nil {
			return res, err
		}
		res.Due += len(due)

		for _, o := range due {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}

			expired, err := s.expirer.ExpireOffer(ctx, o.ID, now)
			switch {
			case err != nil:
				res.Failed++
				s.logger.Error(ctx, "offer expiry failed", "listing_id", o.ListingID, "offer_id", o.ID, "error", err)
			case expired:
				res.Expired++
			default:
				res.Skipped++
			}
		}

		if len(due) < s.batchSize {
			break
		}
		after = offers.CursorAfter(due[len(due)-1])
	}

	if res.Due > 0 {
		s.logger.Info(ctx, "sweep finished", "due", res.Due, "expired", res.Expired, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.now()); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "sweep failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
