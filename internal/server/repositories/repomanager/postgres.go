// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/migrations"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/applicants"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/listings"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/offers"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/allocator/internal/server/repositories/snapshots"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Listings(db dbx.DBTX) listings.Repository {
	return listings.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Applicants(db dbx.DBTX) applicants.Repository {
	return applicants.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Offers(db dbx.DBTX) offers.Repository {
	return offers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Profiles(db dbx.DBTX) profiles.Repository {
	return profiles.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
