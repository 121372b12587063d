// Package listings declares the repository contract for advertised units.
package listings

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// Repository defines persistence operations for listings.
type Repository interface {
	// Create inserts a new Active listing. A second non-closed listing for the
	// same rental object violates listings_active_rental_object_uq.
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)

	// GetByID returns common.ErrorNotFound when the listing does not exist.
	GetByID(ctx context.Context, id string) (*models.Listing, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Listing, error)

	// UpdateStatus moves the listing from -> to. It returns
	// common.ErrInvalidState when the listing is not in from.
	UpdateStatus(ctx context.Context, id string, from, to models.ListingStatus) error
}
