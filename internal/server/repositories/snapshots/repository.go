// Package snapshots declares the append-only store for ranked offer-round
// snapshots.
package snapshots

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// Repository persists snapshot rows. There is deliberately no update or
// delete: a new round writes a new row set.
type Repository interface {
	// CreateBatch inserts all rows of one round.
	CreateBatch(ctx context.Context, entries []*models.OfferApplicant) error

	// ListByRound returns the round's rows in sort order.
	ListByRound(ctx context.Context, roundOfferID string) ([]*models.OfferApplicant, error)

	// ListAfter returns the round's rows with sort_order > after, in order.
	ListAfter(ctx context.Context, roundOfferID string, after int) ([]*models.OfferApplicant, error)
}
