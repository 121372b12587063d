package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/events"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/applicants"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/listings"
	offersrepo "github.com/dmitrijs2005/allocator/internal/server/repositories/offers"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/snapshots"
	"github.com/jackc/pgx/v5/pgconn"
)

// state holds the rows of the in-memory database.
type state struct {
	listings   map[string]*models.Listing
	applicants map[string]*models.Applicant
	offers     map[string]*models.Offer
	snapshots  map[string][]*models.OfferApplicant
}

func (st *state) clone() *state {
	c := &state{
		listings:   make(map[string]*models.Listing, len(st.listings)),
		applicants: make(map[string]*models.Applicant, len(st.applicants)),
		offers:     make(map[string]*models.Offer, len(st.offers)),
		snapshots:  make(map[string][]*models.OfferApplicant, len(st.snapshots)),
	}
	for k, v := range st.listings {
		c.listings[k] = copyOf(v)
	}
	for k, v := range st.applicants {
		c.applicants[k] = copyOf(v)
	}
	for k, v := range st.offers {
		c.offers[k] = copyOf(v)
	}
	for k, rows := range st.snapshots {
		for _, e := range rows {
			c.snapshots[k] = append(c.snapshots[k], copyOf(e))
		}
	}
	return c
}

// store is an in-memory stand-in for the database. It hands out copies so
// the service cannot mutate stored rows behind the repositories' back, and
// it enforces the partial unique indexes of the schema. Writes made inside a
// transaction are discarded when that transaction rolls back.
type store struct {
	mu sync.Mutex
	*state

	// saved is the state at BEGIN of the open transaction.
	saved *state

	// beforeCreateOffer runs before an offer insert and may fail it.
	beforeCreateOffer func(o *models.Offer) error
}

func newStore() *store {
	return &store{
		state: &state{
			listings:   map[string]*models.Listing{},
			applicants: map[string]*models.Applicant{},
			offers:     map[string]*models.Offer{},
			snapshots:  map[string][]*models.OfferApplicant{},
		},
	}
}

func (s *store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = s.state.clone()
}

func (s *store) end(commit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !commit && s.saved != nil {
		s.state = s.saved
	}
	s.saved = nil
}

// committedElsewhere applies fn as a write committed by another session: it
// survives a rollback of the open transaction.
func (s *store) committedElsewhere(fn func(st *state)) {
	fn(s.state)
	if s.saved != nil {
		fn(s.saved)
	}
}

// stagedConnector hands out sqlmock connections whose transactions report
// COMMIT and ROLLBACK to the store.
type stagedConnector struct {
	dsn    string
	driver driver.Driver
	s      *store
}

func (c *stagedConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &stagedConn{Conn: conn, s: c.s}, nil
}

func (c *stagedConnector) Driver() driver.Driver { return c.driver }

type stagedConn struct {
	driver.Conn
	s *store
}

func (c *stagedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	tx, err := c.Conn.(driver.ConnBeginTx).BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.s.begin()
	return &stagedTx{Tx: tx, s: c.s}, nil
}

type stagedTx struct {
	driver.Tx
	s *store
}

func (t *stagedTx) Commit() error {
	err := t.Tx.Commit()
	t.s.end(err == nil)
	return err
}

func (t *stagedTx) Rollback() error {
	err := t.Tx.Rollback()
	t.s.end(false)
	return err
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

type fakeRepoManager struct {
	s *store
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Listings(dbx.DBTX) listings.Repository        { return &fakeListings{m.s} }
func (m *fakeRepoManager) Applicants(dbx.DBTX) applicants.Repository    { return &fakeApplicants{m.s} }
func (m *fakeRepoManager) Offers(dbx.DBTX) offersrepo.Repository        { return &fakeOffers{m.s} }
func (m *fakeRepoManager) Snapshots(dbx.DBTX) snapshots.Repository      { return &fakeSnapshots{m.s} }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository        { return nil }

// --- listings ---

type fakeListings struct{ s *store }

func (f *fakeListings) Create(_ context.Context, l *models.Listing) (*models.Listing, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.listings[l.ID] = copyOf(l)
	return copyOf(l), nil
}

func (f *fakeListings) GetByID(_ context.Context, id string) (*models.Listing, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.listings[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyOf(l), nil
}

func (f *fakeListings) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeListings) UpdateStatus(_ context.Context, id string, from, to models.ListingStatus) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.listings[id]
	if !ok || l.Status != from {
		return common.ErrInvalidState
	}
	l.Status = to
	return nil
}

// --- applicants ---

type fakeApplicants struct{ s *store }

func (f *fakeApplicants) Create(_ context.Context, a *models.Applicant) (*models.Applicant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.applicants[a.ID] = copyOf(a)
	return copyOf(a), nil
}

func (f *fakeApplicants) GetByID(_ context.Context, id string) (*models.Applicant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.applicants[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyOf(a), nil
}

func (f *fakeApplicants) ListByListing(_ context.Context, listingID string) ([]*models.Applicant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Applicant
	for _, a := range f.s.applicants {
		if a.ListingID == listingID {
			out = append(out, copyOf(a))
		}
	}
	slices.SortFunc(out, func(a, b *models.Applicant) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeApplicants) UpdateStatus(_ context.Context, id string, from, to models.ApplicantStatus) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.applicants[id]
	if !ok || a.Status != from {
		return common.ErrInvalidState
	}
	if to == models.ApplicantOffered {
		for _, other := range f.s.applicants {
			if other.ListingID == a.ListingID && other.Status == models.ApplicantOffered {
				return uniqueViolation("applicants_one_offered_per_listing")
			}
		}
	}
	a.Status = to
	return nil
}

func (f *fakeApplicants) ReadmitExpired(_ context.Context, listingID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, a := range f.s.applicants {
		if a.ListingID == listingID && a.Status == models.ApplicantOfferExpired {
			a.Status = models.ApplicantActive
			n++
		}
	}
	return n, nil
}

// --- offers ---

type fakeOffers struct{ s *store }

func (f *fakeOffers) Create(_ context.Context, o *models.Offer) error {
	if f.s.beforeCreateOffer != nil {
		if err := f.s.beforeCreateOffer(o); err != nil {
			return err
		}
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, other := range f.s.offers {
		if other.ListingID == o.ListingID && other.Status == models.OfferPending {
			return uniqueViolation("offers_one_pending_per_listing")
		}
	}
	f.s.offers[o.ID] = copyOf(o)
	return nil
}

func (f *fakeOffers) GetByID(_ context.Context, id string) (*models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.offers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyOf(o), nil
}

func (f *fakeOffers) GetForUpdate(ctx context.Context, id string) (*models.Offer, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOffers) GetPending(_ context.Context, listingID string) (*models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, o := range f.s.offers {
		if o.ListingID == listingID && o.Status == models.OfferPending {
			return copyOf(o), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeOffers) Resolve(_ context.Context, id string, to models.OfferStatus, answeredAt *time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.offers[id]
	if !ok || o.Status != models.OfferPending {
		return common.ErrInvalidState
	}
	o.Status = to
	o.AnsweredAt = answeredAt
	return nil
}

func (f *fakeOffers) ListExpired(_ context.Context, now time.Time, after *offersrepo.Cursor, limit int) ([]*models.Offer, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Offer
	for _, o := range f.s.offers {
		if o.Status != models.OfferPending || o.ExpiresAt.After(now) {
			continue
		}
		if after != nil && (o.ExpiresAt.Before(after.ExpiresAt) ||
			o.ExpiresAt.Equal(after.ExpiresAt) && o.ID <= after.ID) {
			continue
		}
		out = append(out, copyOf(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- snapshots ---

type fakeSnapshots struct{ s *store }

func (f *fakeSnapshots) CreateBatch(_ context.Context, entries []*models.OfferApplicant) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range entries {
		f.s.snapshots[e.OfferID] = append(f.s.snapshots[e.OfferID], copyOf(e))
	}
	return nil
}

func (f *fakeSnapshots) ListByRound(_ context.Context, roundOfferID string) ([]*models.OfferApplicant, error) {
	return f.ListAfter(context.Background(), roundOfferID, -1)
}

func (f *fakeSnapshots) ListAfter(_ context.Context, roundOfferID string, after int) ([]*models.OfferApplicant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.OfferApplicant
	for _, e := range f.s.snapshots[roundOfferID] {
		if e.SortOrder > after {
			out = append(out, copyOf(e))
		}
	}
	slices.SortFunc(out, func(a, b *models.OfferApplicant) int { return a.SortOrder - b.SortOrder })
	return out, nil
}

// --- eligibility data and events ---

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.ApplicationProfile
	err      error
}

func (f *fakeProfiles) Profiles(_ context.Context, codes []string) (map[string]*models.ApplicationProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]*models.ApplicationProfile{}
	for _, c := range codes {
		if p, ok := f.profiles[c]; ok {
			out[c] = p
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, evs ...events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evs...)
}

func (f *fakePublisher) types() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}
