// Package offers holds the offer and applicant transition rules. It performs
// no I/O; the orchestrator persists what these functions decide.
package offers

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/google/uuid"
)

// Outcome is an applicant's answer to an offer.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Declined Outcome = "declined"
)

// ParseOutcome validates an answer received from a caller.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case Accepted, Declined:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown outcome %q", common.ErrInvalidState, s)
}

// Status maps an answer to the terminal offer status it produces.
func (o Outcome) Status() models.OfferStatus {
	if o == Accepted {
		return models.OfferAccepted
	}
	return models.OfferDeclined
}

// ApplicantStatus maps an answer to the applicant status it produces.
func (o Outcome) ApplicantStatus() models.ApplicantStatus {
	if o == Accepted {
		return models.ApplicantAssigned
	}
	return models.ApplicantOfferDeclined
}

// NewRoundOffer creates the Pending offer that opens a round for the
// top-ranked applicant. The offer references itself as the round.
func NewRoundOffer(listingID, applicantID string, now time.Time, ttl time.Duration) *models.Offer {
	id := uuid.NewString()
	return newOffer(id, id, listingID, applicantID, 0, now, ttl)
}

// NewNextOffer creates the Pending offer for a later snapshot entry of an
// existing round.
func NewNextOffer(roundOfferID string, entry *models.OfferApplicant, now time.Time, ttl time.Duration) *models.Offer {
	return newOffer(uuid.NewString(), roundOfferID, entry.ListingID, entry.ApplicantID, entry.SortOrder, now, ttl)
}

func newOffer(id, roundID, listingID, applicantID string, sortOrder int, now time.Time, ttl time.Duration) *models.Offer {
	return &models.Offer{
		ID:           id,
		ListingID:    listingID,
		ApplicantID:  applicantID,
		RoundOfferID: roundID,
		SortOrder:    sortOrder,
		Status:       models.OfferPending,
		SentAt:       now,
		ExpiresAt:    now.Add(ttl),
	}
}

// Due reports whether a Pending offer has reached its deadline at now and
// may be expired.
func Due(o *models.Offer, now time.Time) bool {
	return o.Status == models.OfferPending && !now.Before(o.ExpiresAt)
}

// CheckRespond validates that an answer may be recorded at now. A response
// after the deadline loses to the sweeper.
func CheckRespond(o *models.Offer, now time.Time) error {
	if o.Status != models.OfferPending {
		return fmt.Errorf("%w: offer %s is %s", common.ErrInvalidState, o.ID, o.Status)
	}
	if now.After(o.ExpiresAt) {
		return fmt.Errorf("%w: offer %s expired at %s", common.ErrInvalidState, o.ID, o.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

var applicantTransitions = map[models.ApplicantStatus][]models.ApplicantStatus{
	models.ApplicantActive: {
		models.ApplicantOffered,
		models.ApplicantDenied, models.ApplicantWithdrawnByUser, models.ApplicantWithdrawnByManager,
	},
	models.ApplicantOffered: {
		models.ApplicantAssigned, models.ApplicantOfferDeclined, models.ApplicantOfferExpired,
		models.ApplicantWithdrawnByUser, models.ApplicantWithdrawnByManager,
	},
	models.ApplicantOfferDeclined: {
		models.ApplicantActive,
		models.ApplicantDenied, models.ApplicantWithdrawnByUser, models.ApplicantWithdrawnByManager,
	},
	models.ApplicantOfferExpired: {
		models.ApplicantActive,
		models.ApplicantDenied, models.ApplicantWithdrawnByUser, models.ApplicantWithdrawnByManager,
	},
}

// CanMoveApplicant reports whether from -> to is a legal applicant transition.
func CanMoveApplicant(from, to models.ApplicantStatus) bool {
	for _, s := range applicantTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckApplicant returns common.ErrInvalidState for an illegal transition.
func CheckApplicant(from, to models.ApplicantStatus) error {
	if !CanMoveApplicant(from, to) {
		return fmt.Errorf("%w: applicant %s -> %s", common.ErrInvalidState, from, to)
	}
	return nil
}

var listingTransitions = map[models.ListingStatus][]models.ListingStatus{
	models.ListingActive:   {models.ListingAssigned, models.ListingClosed},
	models.ListingAssigned: {models.ListingClosed},
}

// CheckListing returns common.ErrInvalidState for an illegal transition.
func CheckListing(from, to models.ListingStatus) error {
	for _, s := range listingTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: listing %s -> %s", common.ErrInvalidState, from, to)
}
