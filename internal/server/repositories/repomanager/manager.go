package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/applicants"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/listings"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/offers"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/snapshots"
)

// RepositoryManager vends repositories bound to a DBTX, so one service call
// can use the same *sql.Tx for every table it touches.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Listings(db dbx.DBTX) listings.Repository
	Applicants(db dbx.DBTX) applicants.Repository
	Offers(db dbx.DBTX) offers.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	Profiles(db dbx.DBTX) profiles.Repository
}
