package models

import "time"

// Offer is one proposal of a listing to one ranked applicant.
//
// RoundOfferID is the id of the offer that opened the round; the snapshot
// rows of the round hang off it. SortOrder is the offered applicant's rank
// in that snapshot.
type Offer struct {
	ID           string
	ListingID    string
	ApplicantID  string
	RoundOfferID string
	SortOrder    int
	Status       OfferStatus
	SentAt       time.Time
	ExpiresAt    time.Time
	AnsweredAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OpensRound reports whether this offer created its round's snapshot.
func (o *Offer) OpensRound() bool {
	return o.RoundOfferID == o.ID
}
