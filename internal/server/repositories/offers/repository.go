// Package offers declares the repository contract for offers.
package offers

import (
	"context"
	"time"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// Cursor is a position in the (expires_at, id) order used by ListExpired.
type Cursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorAfter returns the position just past o.
func CursorAfter(o *models.Offer) *Cursor {
	return &Cursor{ExpiresAt: o.ExpiresAt, ID: o.ID}
}

// Repository defines persistence operations for offers.
type Repository interface {
	// Create inserts a Pending offer. A second Pending offer for the same
	// listing violates offers_one_pending_per_listing.
	Create(ctx context.Context, offer *models.Offer) error

	// GetByID returns common.ErrorNotFound when the offer does not exist.
	GetByID(ctx context.Context, id string) (*models.Offer, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Offer, error)

	// GetPending returns the listing's Pending offer or common.ErrorNotFound.
	GetPending(ctx context.Context, listingID string) (*models.Offer, error)

	// Resolve moves a Pending offer to a terminal status. It returns
	// common.ErrInvalidState when the offer is no longer Pending.
	Resolve(ctx context.Context, id string, to models.OfferStatus, answeredAt *time.Time) error

	// ListExpired returns up to limit Pending offers with expires_at <= now,
	// ordered by (expires_at, id). A non-nil after skips offers at or before
	// that position.
	ListExpired(ctx context.Context, now time.Time, after *Cursor, limit int) ([]*models.Offer, error)
}
