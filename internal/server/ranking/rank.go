// Package ranking orders an eligible applicant pool for one offer round.
//
// The order is a pure total order over the ranking inputs:
//
//  1. priority tier ascending, applicants without a tier last
//  2. queue points descending
//  3. application date ascending
//  4. applicant id ascending
//
// Ranking the same pool twice always yields the same sequence.
package ranking

import (
	"slices"
	"strings"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

// Ranked is an applicant together with its dense, zero-based rank.
type Ranked struct {
	Applicant *models.Applicant
	SortOrder int
}

// Rank returns the pool in ranking order. The input slice is not modified.
func Rank(pool []*models.Applicant) []Ranked {
	sorted := slices.Clone(pool)
	slices.SortStableFunc(sorted, Compare)

	out := make([]Ranked, len(sorted))
	for i, a := range sorted {
		out[i] = Ranked{Applicant: a, SortOrder: i}
	}
	return out
}

// Compare reports whether a ranks before (-1) or after (1) b.
func Compare(a, b *models.Applicant) int {
	if c := compareTier(a.PriorityTier, b.PriorityTier); c != 0 {
		return c
	}
	if a.QueuePoints != b.QueuePoints {
		if a.QueuePoints > b.QueuePoints {
			return -1
		}
		return 1
	}
	if c := a.ApplicationDate.Compare(b.ApplicationDate); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func compareTier(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// Snapshot turns a ranking into the round's snapshot rows, copying the
// ranking inputs as they are now.
func Snapshot(listingID, roundOfferID string, ranked []Ranked) []*models.OfferApplicant {
	out := make([]*models.OfferApplicant, 0, len(ranked))
	for _, r := range ranked {
		a := r.Applicant
		var tier *int
		if a.PriorityTier != nil {
			t := *a.PriorityTier
			tier = &t
		}
		out = append(out, &models.OfferApplicant{
			ListingID:          listingID,
			OfferID:            roundOfferID,
			ApplicantID:        a.ID,
			ApplicantStatus:    a.Status,
			ApplicationType:    a.ApplicationType,
			QueuePoints:        a.QueuePoints,
			Address:            a.Address,
			HasParkingSpace:    a.HasParkingSpace,
			HousingLeaseStatus: a.HousingLeaseStatus,
			PriorityTier:       tier,
			SortOrder:          r.SortOrder,
		})
	}
	return out
}
