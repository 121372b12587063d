package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/dmitrijs2005/allocator/internal/server/offers"
	"github.com/dmitrijs2005/allocator/internal/server/services"
	"github.com/dmitrijs2005/allocator/internal/server/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	ran, migrated, closed bool
	did                   int
}

func (f *fakeApp) Run(context.Context) error     { f.ran = true; return nil }
func (f *fakeApp) Migrate(context.Context) error { f.migrated = true; return nil }
func (f *fakeApp) Close() error                  { f.closed = true; return nil }
func (f *fakeApp) Do(ctx context.Context, fn func(context.Context) error) error {
	f.did++
	return fn(ctx)
}

type fakeAlloc struct {
	listingID string
	offerID   string
	token     string
	outcome   offers.Outcome
	startErr  error
	closed    string
}

func (f *fakeAlloc) StartOfferRound(_ context.Context, listingID string) (*models.Offer, error) {
	f.listingID = listingID
	return &models.Offer{ID: "o-1", ListingID: listingID}, f.startErr
}

func (f *fakeAlloc) RespondToOffer(_ context.Context, offerID string, outcome offers.Outcome) (*services.Response, error) {
	f.offerID, f.outcome = offerID, outcome
	return &services.Response{Offer: &models.Offer{ID: offerID}}, nil
}

func (f *fakeAlloc) RespondWithToken(_ context.Context, token string, outcome offers.Outcome) (*services.Response, error) {
	f.token, f.outcome = token, outcome
	return &services.Response{Offer: &models.Offer{ID: "o-1"}}, nil
}

func (f *fakeAlloc) RoundSnapshot(_ context.Context, offerID string) ([]*models.OfferApplicant, error) {
	f.offerID = offerID
	return []*models.OfferApplicant{{OfferID: offerID, ApplicantID: "a-1"}}, nil
}

func (f *fakeAlloc) CloseListing(_ context.Context, listingID string) error {
	f.closed = listingID
	return nil
}

type fakeSweep struct{ calls int }

func (f *fakeSweep) Sweep(context.Context, time.Time) (sweeper.Result, error) {
	f.calls++
	return sweeper.Result{Due: 2, Expired: 2}, nil
}

func setup(t *testing.T) (*fakeApp, *fakeAlloc, *fakeSweep) {
	t.Helper()
	app, alloc, sw := &fakeApp{}, &fakeAlloc{}, &fakeSweep{}

	orig := openEnv
	t.Cleanup(func() { openEnv = orig })
	openEnv = func(context.Context) (*env, error) {
		return &env{app: app, alloc: alloc, sweep: sw}, nil
	}
	return app, alloc, sw
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRun(t *testing.T) {
	app, _, _ := setup(t)

	_, _, err := execute(t, "run", "-d", "postgres://x", "-t", "48")
	require.NoError(t, err)
	assert.True(t, app.ran)
	assert.True(t, app.closed)
}

func TestMigrate(t *testing.T) {
	app, _, _ := setup(t)

	_, _, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.True(t, app.migrated)
}

func TestSweep(t *testing.T) {
	app, _, sw := setup(t)

	out, _, err := execute(t, "sweep", "-n", "50")
	require.NoError(t, err)
	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, 1, app.did)
	assert.Contains(t, out, `"Expired": 2`)
}

func TestStartRound_ConfigFlagsAreNotArguments(t *testing.T) {
	app, alloc, _ := setup(t)

	out, _, err := execute(t, "start-round", "-d", "postgres://x", "l-1", "-s", "secret")
	require.NoError(t, err)
	assert.Equal(t, "l-1", alloc.listingID)
	assert.Equal(t, 1, app.did)
	assert.Contains(t, out, `"ID": "o-1"`)
}

func TestStartRound_PendingOfferIsNotAnError(t *testing.T) {
	_, alloc, _ := setup(t)
	alloc.startErr = common.ErrConflict

	out, errOut, err := execute(t, "start-round", "l-1")
	require.NoError(t, err)
	assert.Contains(t, errOut, "already has a pending offer")
	assert.Contains(t, out, `"ID": "o-1"`)
}

func TestStartRound_EmptyPool(t *testing.T) {
	_, alloc, _ := setup(t)
	alloc.startErr = common.ErrEmptyPool

	_, _, err := execute(t, "start-round", "l-1")
	assert.ErrorIs(t, err, common.ErrEmptyPool)
}

func TestRespond(t *testing.T) {
	_, alloc, _ := setup(t)

	_, _, err := execute(t, "respond", "o-9", "declined")
	require.NoError(t, err)
	assert.Equal(t, "o-9", alloc.offerID)
	assert.Equal(t, offers.Declined, alloc.outcome)

	_, _, err = execute(t, "respond", "o-9", "maybe")
	assert.Error(t, err)

	_, _, err = execute(t, "respond", "o-9")
	assert.Error(t, err)
}

func TestRespondToken(t *testing.T) {
	_, alloc, _ := setup(t)

	_, _, err := execute(t, "respond-token", "tok", "accepted")
	require.NoError(t, err)
	assert.Equal(t, "tok", alloc.token)
	assert.Equal(t, offers.Accepted, alloc.outcome)
}

func TestSnapshot(t *testing.T) {
	_, alloc, _ := setup(t)

	out, _, err := execute(t, "snapshot", "o-3")
	require.NoError(t, err)
	assert.Equal(t, "o-3", alloc.offerID)
	assert.Contains(t, out, `"ApplicantID": "a-1"`)
}

func TestCloseListing(t *testing.T) {
	_, alloc, _ := setup(t)

	_, _, err := execute(t, "close-listing", "l-7")
	require.NoError(t, err)
	assert.Equal(t, "l-7", alloc.closed)
}

func TestOpenEnvError(t *testing.T) {
	orig := openEnv
	t.Cleanup(func() { openEnv = orig })
	boom := errors.New("db down")
	openEnv = func(context.Context) (*env, error) { return nil, boom }

	_, _, err := execute(t, "migrate")
	assert.ErrorIs(t, err, boom)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version: N/A")
}
