package models

import "time"

// WaitingListType classifies which applicant pool qualifies for a listing.
type WaitingListType string

const (
	WaitingListHousing WaitingListType = "housing"
	WaitingListParking WaitingListType = "parking"
	WaitingListStorage WaitingListType = "storage"
)

// RequiresHousingProfile reports whether applicants need an approved housing
// reference to enter the ranked pool.
func (t WaitingListType) RequiresHousingProfile() bool {
	return t == WaitingListHousing
}

// Listing is a vacant rental unit advertised for a time window.
type Listing struct {
	ID               string
	RentalObjectCode string
	MonthlyRentCents int64
	PublishedFrom    time.Time
	PublishedTo      time.Time
	VacantFrom       time.Time
	Status           ListingStatus
	WaitingListType  WaitingListType
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
