package models

import "time"

type ApplicationType string

const (
	ApplicationOrdinary   ApplicationType = "ordinary"
	ApplicationAdditional ApplicationType = "additional"
)

// Applicant is one person's application to one listing, together with the
// ranking inputs supplied when the application was registered.
type Applicant struct {
	ID                         string
	ListingID                  string
	ContactCode                string
	NationalRegistrationNumber *string
	ApplicationDate            time.Time
	ApplicationType            ApplicationType
	Status                     ApplicantStatus
	QueuePoints                int
	Address                    string
	HasParkingSpace            bool
	HousingLeaseStatus         string
	PriorityTier               *int
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}
