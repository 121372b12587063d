// Package applicants declares the repository contract for applications to
// listings.
package applicants

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// Repository defines persistence operations for applicants.
type Repository interface {
	Create(ctx context.Context, applicant *models.Applicant) (*models.Applicant, error)

	// GetByID returns common.ErrorNotFound when the applicant does not exist.
	GetByID(ctx context.Context, id string) (*models.Applicant, error)

	// ListByListing returns every applicant of a listing regardless of status,
	// ordered by id.
	ListByListing(ctx context.Context, listingID string) ([]*models.Applicant, error)

	// UpdateStatus moves the applicant from -> to and returns
	// common.ErrInvalidState when it is not in from. Moving a second applicant
	// of the same listing into Offered violates
	// applicants_one_offered_per_listing.
	UpdateStatus(ctx context.Context, id string, from, to models.ApplicantStatus) error

	// ReadmitExpired moves every OfferExpired applicant of the listing back to
	// Active and returns how many were moved.
	ReadmitExpired(ctx context.Context, listingID string) (int64, error)
}
