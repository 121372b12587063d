package models

import "time"

// HousingReference is the landlord reference attached to a profile and its
// review outcome.
type HousingReference struct {
	ReviewStatus ReviewStatus
	ReviewedAt   *time.Time
	ExpiresAt    *time.Time
}

// ApprovedAt reports whether the reference is approved and not expired at now.
func (r *HousingReference) ApprovedAt(now time.Time) bool {
	if r == nil || r.ReviewStatus != ReviewApproved {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// ApplicationProfile is applicant-supplied eligibility data. The engine only
// reads it.
type ApplicationProfile struct {
	ID               string
	ContactCode      string
	NumAdults        int
	NumChildren      int
	HousingType      string
	HousingReference HousingReference
	ExpiresAt        *time.Time
	CreatedAt        time.Time
}

// ValidAt reports whether the profile itself has not expired at now.
func (p *ApplicationProfile) ValidAt(now time.Time) bool {
	return p != nil && (p.ExpiresAt == nil || p.ExpiresAt.After(now))
}
