package models

import "time"

// OfferApplicant is one immutable row of a round's ranked snapshot. Rows are
// addressed by (OfferID, SortOrder) where OfferID is the round-opening offer.
type OfferApplicant struct {
	ListingID          string
	OfferID            string
	ApplicantID        string
	ApplicantStatus    ApplicantStatus
	ApplicationType    ApplicationType
	QueuePoints        int
	Address            string
	HasParkingSpace    bool
	HousingLeaseStatus string
	PriorityTier       *int
	SortOrder          int
	CreatedAt          time.Time
}
