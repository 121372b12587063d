// Package services contains the allocation orchestrator. AllocationService
// opens offer rounds, records answers and cascades through a round's ranked
// snapshot on decline or expiry. Every operation runs in one serializable
// transaction and publishes its events only after commit.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/logging"
	"github.com/dmitrijs2005/allocator/internal/server/auth"
	"github.com/dmitrijs2005/allocator/internal/server/config"
	"github.com/dmitrijs2005/allocator/internal/server/eligibility"
	"github.com/dmitrijs2005/allocator/internal/server/events"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/dmitrijs2005/allocator/internal/server/offers"
	"github.com/dmitrijs2005/allocator/internal/server/ranking"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/applicants"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/listings"
	offersrepo "github.com/dmitrijs2005/allocator/internal/server/repositories/offers"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/snapshots"
)

// Response is the result of answering or expiring an offer.
type Response struct {
	// Offer is the offer that was resolved.
	Offer *models.Offer
	// Next is the offer opened for the following snapshot entry, or nil when
	// the offer was accepted or the round ran out of eligible entries.
	Next *models.Offer
}

type AllocationService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	checker        *eligibility.Checker
	publisher      events.Publisher
	secretKey      []byte
	offerTTL       time.Duration
	readmitExpired bool
	logger         logging.Logger
	now            func() time.Time
}

func NewAllocationService(db *sql.DB, m repomanager.RepositoryManager, provider eligibility.ProfileProvider,
	publisher events.Publisher, cfg *config.Config, logger logging.Logger) *AllocationService {
	return &AllocationService{
		db:             db,
		repomanager:    m,
		checker:        eligibility.NewChecker(provider),
		publisher:      publisher,
		secretKey:      []byte(cfg.SecretKey),
		offerTTL:       cfg.OfferTTL,
		readmitExpired: cfg.ReadmitExpired,
		logger:         logger.With("module", "allocation"),
		now:            time.Now,
	}
}

type txRepos struct {
	listings   listings.Repository
	applicants applicants.Repository
	offers     offersrepo.Repository
	snapshots  snapshots.Repository
}

func (s *AllocationService) repos(db dbx.DBTX) *txRepos {
	return &txRepos{
		listings:   s.repomanager.Listings(db),
		applicants: s.repomanager.Applicants(db),
		offers:     s.repomanager.Offers(db),
		snapshots:  s.repomanager.Snapshots(db),
	}
}

// StartOfferRound ranks the listing's eligible applicants, stores the ranked
// snapshot and offers the listing to the top entry.
//
// When the listing already has a Pending offer, that offer is returned
// together with common.ErrConflict. An empty eligible pool yields
// common.ErrEmptyPool and leaves the listing untouched.
func (s *AllocationService) StartOfferRound(ctx context.Context, listingID string) (*models.Offer, error) {
	now := s.now()

	var (
		offer   *models.Offer
		emitted []events.Event
	)
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		offer, emitted = nil, nil
		r := s.repos(tx)

		listing, err := r.listings.GetForUpdate(ctx, listingID)
		if err != nil {
			return fmt.Errorf("error loading listing: %w", err)
		}
		if listing.Status != models.ListingActive {
			return fmt.Errorf("%w: listing %s is %s", common.ErrInvalidState, listing.ID, listing.Status)
		}

		pending, err := r.offers.GetPending(ctx, listingID)
		switch {
		case err == nil:
			offer = pending
			return common.ErrConflict
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error loading pending offer: %w", err)
		}

		if s.readmitExpired {
			n, err := r.applicants.ReadmitExpired(ctx, listingID)
			if err != nil {
				return fmt.Errorf("error readmitting applicants: %w", err)
			}
			if n > 0 {
				s.logger.Debug(ctx, "readmitted expired applicants", "listing_id", listingID, "count", n)
			}
		}

		pool, err := r.applicants.ListByListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("error loading applicants: %w", err)
		}
		eligible, err := s.checker.Eligible(ctx, listing, pool, now)
		if err != nil {
			return err
		}
		if len(eligible) == 0 {
			return common.ErrEmptyPool
		}

		ranked := ranking.Rank(eligible)
		top := ranked[0].Applicant

		o := offers.NewRoundOffer(listingID, top.ID, now, s.offerTTL)
		if err := r.offers.Create(ctx, o); err != nil {
			return fmt.Errorf("error creating offer: %w", err)
		}
		if err := r.snapshots.CreateBatch(ctx, ranking.Snapshot(listingID, o.ID, ranked)); err != nil {
			return fmt.Errorf("error storing snapshot: %w", err)
		}
		if err := r.applicants.UpdateStatus(ctx, top.ID, models.ApplicantActive, models.ApplicantOffered); err != nil {
			return fmt.Errorf("error marking applicant offered: %w", err)
		}

		e, err := s.offerCreated(o)
		if err != nil {
			return err
		}
		offer, emitted = o, []events.Event{e}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) && offer != nil {
			return offer, err
		}
		return s.recoverConflict(ctx, listingID, err)
	}

	s.logger.Info(ctx, "offer round started", "listing_id", listingID, "offer_id", offer.ID, "applicant_id", offer.ApplicantID)
	s.publisher.Publish(ctx, emitted...)
	return offer, nil
}

// recoverConflict maps a lost race on the pending-offer constraint to
// common.ErrConflict and re-reads the winner.
func (s *AllocationService) recoverConflict(ctx context.Context, listingID string, err error) (*models.Offer, error) {
	if !dbx.IsUniqueViolation(err) && !dbx.IsSerializationFailure(err) {
		return nil, err
	}
	s.logger.Warn(ctx, "concurrent offer round", "listing_id", listingID, "constraint", dbx.ConstraintName(err))

	existing, rerr := s.repomanager.Offers(s.db).GetPending(ctx, listingID)
	if rerr != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConflict, err)
	}
	return existing, common.ErrConflict
}

// RespondToOffer records the applicant's answer. A response to an offer that
// is no longer Pending or is past its deadline fails with
// common.ErrInvalidState. Accepting assigns the listing and ends the round;
// declining opens an offer for the next still-eligible snapshot entry.
func (s *AllocationService) RespondToOffer(ctx context.Context, offerID string, outcome offers.Outcome) (*Response, error) {
	return s.respond(ctx, offerID, "", outcome)
}

// RespondWithToken verifies a response token and records the answer it
// carries. An expired token is reported as common.ErrInvalidState.
func (s *AllocationService) RespondWithToken(ctx context.Context, token string, outcome offers.Outcome) (*Response, error) {
	claims, err := auth.ParseResponseToken(token, s.secretKey, s.now())
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidState, err)
		}
		return nil, err
	}
	return s.respond(ctx, claims.OfferID, claims.ApplicantID, outcome)
}

func (s *AllocationService) respond(ctx context.Context, offerID, applicantID string, outcome offers.Outcome) (*Response, error) {
	now := s.now()

	var (
		resp    *Response
		emitted []events.Event
	)
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		resp, emitted = nil, nil
		r := s.repos(tx)

		listing, o, err := s.lockOffer(ctx, r, offerID)
		if err != nil {
			return err
		}
		if applicantID != "" && o.ApplicantID != applicantID {
			return common.ErrInvalidToken
		}
		if err := offers.CheckRespond(o, now); err != nil {
			return err
		}

		answeredAt := now
		if err := r.offers.Resolve(ctx, o.ID, outcome.Status(), &answeredAt); err != nil {
			return fmt.Errorf("error resolving offer: %w", err)
		}
		if err := r.applicants.UpdateStatus(ctx, o.ApplicantID, models.ApplicantOffered, outcome.ApplicantStatus()); err != nil {
			return fmt.Errorf("error updating applicant: %w", err)
		}
		o.Status, o.AnsweredAt = outcome.Status(), &answeredAt
		resp = &Response{Offer: o}

		if outcome == offers.Accepted {
			if err := offers.CheckListing(listing.Status, models.ListingAssigned); err != nil {
				return err
			}
			if err := r.listings.UpdateStatus(ctx, listing.ID, listing.Status, models.ListingAssigned); err != nil {
				return fmt.Errorf("error assigning listing: %w", err)
			}
			emitted = append(emitted, offerEvent(events.OfferAccepted, o, now))
			return nil
		}

		emitted = append(emitted, offerEvent(events.OfferDeclined, o, now))
		next, evs, err := s.advanceToNext(ctx, r, listing, o, now)
		if err != nil {
			return err
		}
		resp.Next = next
		emitted = append(emitted, evs...)
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.logger.Info(ctx, "offer answered", "listing_id", resp.Offer.ListingID, "offer_id", offerID, "outcome", outcome)
	s.publisher.Publish(ctx, emitted...)
	return resp, nil
}

// ExpireOffer expires a Pending offer whose deadline has passed at now and
// cascades to the next snapshot entry. It reports false without error when
// the offer was already resolved or is not yet due, so repeated sweeps are
// harmless.
func (s *AllocationService) ExpireOffer(ctx context.Context, offerID string, now time.Time) (bool, error) {
	var (
		expired bool
		emitted []events.Event
	)
	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		expired, emitted = false, nil
		r := s.repos(tx)

		listing, o, err := s.lockOffer(ctx, r, offerID)
		if err != nil {
			return err
		}
		if !offers.Due(o, now) {
			return nil
		}

		if err := r.offers.Resolve(ctx, o.ID, models.OfferExpired, nil); err != nil {
			return fmt.Errorf("error expiring offer: %w", err)
		}
		if err := r.applicants.UpdateStatus(ctx, o.ApplicantID, models.ApplicantOffered, models.ApplicantOfferExpired); err != nil {
			return fmt.Errorf("error updating applicant: %w", err)
		}
		o.Status = models.OfferExpired
		emitted = append(emitted, offerEvent(events.OfferExpired, o, now))

		_, evs, err := s.advanceToNext(ctx, r, listing, o, now)
		if err != nil {
			return err
		}
		emitted = append(emitted, evs...)
		expired = true
		return nil
	})
	if err != nil {
		return false, mapTxError(err)
	}

	if expired {
		s.logger.Info(ctx, "offer expired", "offer_id", offerID)
		s.publisher.Publish(ctx, emitted...)
	}
	return expired, nil
}

// lockOffer locks the offer's listing and then the offer itself, the same
// order StartOfferRound uses.
func (s *AllocationService) lockOffer(ctx context.Context, r *txRepos, offerID string) (*models.Listing, *models.Offer, error) {
	o, err := r.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading offer: %w", err)
	}
	listing, err := r.listings.GetForUpdate(ctx, o.ListingID)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading listing: %w", err)
	}
	o, err = r.offers.GetForUpdate(ctx, offerID)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading offer: %w", err)
	}
	return listing, o, nil
}

// advanceToNext opens an offer for the first snapshot entry after exhausted
// whose applicant is eligible now. The round is not re-ranked. When no entry
// qualifies the listing is left without a Pending offer and a
// RoundExhausted event is returned.
func (s *AllocationService) advanceToNext(ctx context.Context, r *txRepos, listing *models.Listing, exhausted *models.Offer, now time.Time) (*models.Offer, []events.Event, error) {
	entries, err := r.snapshots.ListAfter(ctx, exhausted.RoundOfferID, exhausted.SortOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading snapshot: %w", err)
	}

	var candidates []*models.Applicant
	entryByApplicant := make(map[string]*models.OfferApplicant, len(entries))
	if len(entries) > 0 {
		current, err := r.applicants.ListByListing(ctx, listing.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading applicants: %w", err)
		}
		byID := make(map[string]*models.Applicant, len(current))
		for _, a := range current {
			byID[a.ID] = a
		}
		for _, e := range entries {
			if a, ok := byID[e.ApplicantID]; ok {
				candidates = append(candidates, a)
				entryByApplicant[a.ID] = e
			}
		}
	}

	eligible, err := s.checker.Eligible(ctx, listing, candidates, now)
	if err != nil {
		return nil, nil, err
	}
	if len(eligible) == 0 {
		s.logger.Info(ctx, "offer round exhausted", "listing_id", listing.ID, "round_offer_id", exhausted.RoundOfferID)
		e := events.New(events.RoundExhausted, listing.ID, now)
		e.RoundOfferID = exhausted.RoundOfferID
		return nil, []events.Event{e}, nil
	}

	entry := entryByApplicant[eligible[0].ID]
	next := offers.NewNextOffer(exhausted.RoundOfferID, entry, now, s.offerTTL)
	if err := r.offers.Create(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("error creating offer: %w", err)
	}
	if err := r.applicants.UpdateStatus(ctx, next.ApplicantID, models.ApplicantActive, models.ApplicantOffered); err != nil {
		return nil, nil, fmt.Errorf("error marking applicant offered: %w", err)
	}

	e, err := s.offerCreated(next)
	if err != nil {
		return nil, nil, err
	}
	return next, []events.Event{e}, nil
}

// RoundSnapshot returns the ranked snapshot of the round the offer belongs to.
func (s *AllocationService) RoundSnapshot(ctx context.Context, offerID string) ([]*models.OfferApplicant, error) {
	o, err := s.repomanager.Offers(s.db).GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Snapshots(s.db).ListByRound(ctx, o.RoundOfferID)
}

// CloseListing closes a listing that has no Pending offer, for example one
// withdrawn from advertising or left unfilled after its rounds.
func (s *AllocationService) CloseListing(ctx context.Context, listingID string) error {
	now := s.now()

	err := dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		r := s.repos(tx)

		listing, err := r.listings.GetForUpdate(ctx, listingID)
		if err != nil {
			return fmt.Errorf("error loading listing: %w", err)
		}
		if err := offers.CheckListing(listing.Status, models.ListingClosed); err != nil {
			return err
		}

		_, err = r.offers.GetPending(ctx, listingID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: listing %s has a pending offer", common.ErrInvalidState, listingID)
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error loading pending offer: %w", err)
		}

		return r.listings.UpdateStatus(ctx, listingID, listing.Status, models.ListingClosed)
	})
	if err != nil {
		return mapTxError(err)
	}

	s.logger.Info(ctx, "listing closed", "listing_id", listingID)
	s.publisher.Publish(ctx, events.New(events.ListingClosed, listingID, now))
	return nil
}

func (s *AllocationService) offerCreated(o *models.Offer) (events.Event, error) {
	token, err := auth.GenerateResponseToken(o, s.secretKey)
	if err != nil {
		return events.Event{}, fmt.Errorf("error signing response token: %w", err)
	}
	e := offerEvent(events.OfferCreated, o, o.SentAt)
	expiresAt := o.ExpiresAt
	e.ExpiresAt = &expiresAt
	e.ResponseToken = token
	return e, nil
}

func offerEvent(t events.Type, o *models.Offer, now time.Time) events.Event {
	e := events.New(t, o.ListingID, now)
	e.OfferID = o.ID
	e.RoundOfferID = o.RoundOfferID
	e.ApplicantID = o.ApplicantID
	sortOrder := o.SortOrder
	e.SortOrder = &sortOrder
	return e
}

// mapTxError folds constraint and serialization failures that survived the
// transaction retries into common.ErrConflict.
func mapTxError(err error) error {
	if dbx.IsUniqueViolation(err) || dbx.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", common.ErrConflict, err)
	}
	return err
}
