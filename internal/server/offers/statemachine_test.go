package offers

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("accepted")
	require.NoError(t, err)
	assert.Equal(t, Accepted, o)

	o, err = ParseOutcome("declined")
	require.NoError(t, err)
	assert.Equal(t, Declined, o)

	_, err = ParseOutcome("maybe")
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestOutcome_Statuses(t *testing.T) {
	assert.Equal(t, models.OfferAccepted, Accepted.Status())
	assert.Equal(t, models.ApplicantAssigned, Accepted.ApplicantStatus())
	assert.Equal(t, models.OfferDeclined, Declined.Status())
	assert.Equal(t, models.ApplicantOfferDeclined, Declined.ApplicantStatus())
}

func TestNewRoundOffer(t *testing.T) {
	o := NewRoundOffer("l-1", "a-1", now, 72*time.Hour)

	_, err := uuid.Parse(o.ID)
	require.NoError(t, err)
	assert.True(t, o.OpensRound())
	assert.Equal(t, models.OfferPending, o.Status)
	assert.Equal(t, 0, o.SortOrder)
	assert.Equal(t, now, o.SentAt)
	assert.Equal(t, now.Add(72*time.Hour), o.ExpiresAt)
	assert.Nil(t, o.AnsweredAt)
}

func TestNewNextOffer(t *testing.T) {
	entry := &models.OfferApplicant{ListingID: "l-1", OfferID: "round", ApplicantID: "a-3", SortOrder: 2}
	o := NewNextOffer("round", entry, now, time.Hour)

	assert.False(t, o.OpensRound())
	assert.Equal(t, "round", o.RoundOfferID)
	assert.Equal(t, "a-3", o.ApplicantID)
	assert.Equal(t, 2, o.SortOrder)
	assert.Equal(t, now.Add(time.Hour), o.ExpiresAt)
}

func TestCheckRespond(t *testing.T) {
	pending := &models.Offer{ID: "o", Status: models.OfferPending, ExpiresAt: now}

	assert.NoError(t, CheckRespond(pending, now.Add(-time.Second)))
	assert.NoError(t, CheckRespond(pending, now), "deadline itself is still in time")
	assert.ErrorIs(t, CheckRespond(pending, now.Add(time.Nanosecond)), common.ErrInvalidState)

	for _, s := range []models.OfferStatus{models.OfferAccepted, models.OfferDeclined, models.OfferExpired} {
		o := &models.Offer{ID: "o", Status: s, ExpiresAt: now.Add(time.Hour)}
		assert.ErrorIs(t, CheckRespond(o, now), common.ErrInvalidState, s.String())
	}
}

func TestDue(t *testing.T) {
	o := &models.Offer{Status: models.OfferPending, ExpiresAt: now}

	assert.False(t, Due(o, now.Add(-time.Second)))
	assert.True(t, Due(o, now))
	assert.True(t, Due(o, now.Add(time.Hour)))

	o.Status = models.OfferExpired
	assert.False(t, Due(o, now.Add(time.Hour)), "already resolved")
}

func TestCheckApplicant(t *testing.T) {
	legal := [][2]models.ApplicantStatus{
		{models.ApplicantActive, models.ApplicantOffered},
		{models.ApplicantOffered, models.ApplicantAssigned},
		{models.ApplicantOffered, models.ApplicantOfferDeclined},
		{models.ApplicantOffered, models.ApplicantOfferExpired},
		{models.ApplicantOfferDeclined, models.ApplicantActive},
		{models.ApplicantOfferExpired, models.ApplicantActive},
		{models.ApplicantActive, models.ApplicantWithdrawnByUser},
		{models.ApplicantOfferExpired, models.ApplicantDenied},
	}
	for _, tr := range legal {
		assert.NoError(t, CheckApplicant(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]models.ApplicantStatus{
		{models.ApplicantActive, models.ApplicantAssigned},
		{models.ApplicantActive, models.ApplicantOfferDeclined},
		{models.ApplicantAssigned, models.ApplicantActive},
		{models.ApplicantDenied, models.ApplicantActive},
		{models.ApplicantWithdrawnByUser, models.ApplicantOffered},
		{models.ApplicantOfferDeclined, models.ApplicantOffered},
	}
	for _, tr := range illegal {
		assert.ErrorIs(t, CheckApplicant(tr[0], tr[1]), common.ErrInvalidState, "%s -> %s", tr[0], tr[1])
	}
}

func TestCheckListing(t *testing.T) {
	assert.NoError(t, CheckListing(models.ListingActive, models.ListingAssigned))
	assert.NoError(t, CheckListing(models.ListingActive, models.ListingClosed))
	assert.NoError(t, CheckListing(models.ListingAssigned, models.ListingClosed))
	assert.ErrorIs(t, CheckListing(models.ListingClosed, models.ListingActive), common.ErrInvalidState)
	assert.ErrorIs(t, CheckListing(models.ListingAssigned, models.ListingActive), common.ErrInvalidState)
}
