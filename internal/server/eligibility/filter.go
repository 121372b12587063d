// Package eligibility decides which applicants enter a ranking round.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// ProfileProvider supplies the most recent application profile per contact
// code. Contacts without a profile are absent from the returned map.
type ProfileProvider interface {
	Profiles(ctx context.Context, contactCodes []string) (map[string]*models.ApplicationProfile, error)
}

// Filter returns the applicants eligible for an offer on listing at now,
// preserving input order. Applicants that fail the profile requirement are
// dropped silently.
func Filter(listing *models.Listing, pool []*models.Applicant, profiles map[string]*models.ApplicationProfile, now time.Time) []*models.Applicant {
	out := make([]*models.Applicant, 0, len(pool))
	for _, a := range pool {
		if Eligible(listing, a, profiles[a.ContactCode], now) {
			out = append(out, a)
		}
	}
	return out
}

// Eligible applies the inclusion rule to a single applicant. profile is the
// applicant's most recent profile and may be nil.
func Eligible(listing *models.Listing, a *models.Applicant, profile *models.ApplicationProfile, now time.Time) bool {
	if a.Status != models.ApplicantActive {
		return false
	}
	if !listing.WaitingListType.RequiresHousingProfile() {
		return true
	}
	if !profile.ValidAt(now) {
		return false
	}
	return profile.HousingReference.ApprovedAt(now)
}

// Checker runs the filter against live profile data.
type Checker struct {
	provider ProfileProvider
}

func NewChecker(provider ProfileProvider) *Checker {
	return &Checker{provider: provider}
}

// Eligible loads profiles for the Active part of pool when the listing needs
// them and returns the eligible subset. Provider failures are wrapped in
// common.ErrEligibilityDataUnavailable.
func (c *Checker) Eligible(ctx context.Context, listing *models.Listing, pool []*models.Applicant, now time.Time) ([]*models.Applicant, error) {
	if !listing.WaitingListType.RequiresHousingProfile() {
		return Filter(listing, pool, nil, now), nil
	}

	codes := contactCodes(pool)
	if len(codes) == 0 {
		return nil, nil
	}

	profiles, err := c.provider.Profiles(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEligibilityDataUnavailable, err)
	}
	return Filter(listing, pool, profiles, now), nil
}

func contactCodes(pool []*models.Applicant) []string {
	seen := make(map[string]struct{}, len(pool))
	codes := make([]string, 0, len(pool))
	for _, a := range pool {
		if a.Status != models.ApplicantActive {
			continue
		}
		if _, ok := seen[a.ContactCode]; ok {
			continue
		}
		seen[a.ContactCode] = struct{}{}
		codes = append(codes, a.ContactCode)
	}
	return codes
}
