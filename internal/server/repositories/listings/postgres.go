package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

const selectColumns = `SELECT id, rental_object_code, monthly_rent_cents, published_from, published_to,
		vacant_from, status, waiting_list_type, created_at, updated_at
		FROM listings`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	query :=
		`INSERT INTO listings (rental_object_code, monthly_rent_cents, published_from, published_to,
			vacant_from, status, waiting_list_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	l.Status = models.ListingActive
	err := r.db.QueryRowContext(ctx, query,
		l.RentalObjectCode, l.MonthlyRentCents, l.PublishedFrom, l.PublishedTo,
		l.VacantFrom, int16(l.Status), string(l.WaitingListType),
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return l, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	return r.get(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return r.get(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, id string) (*models.Listing, error) {
	l := &models.Listing{}
	var status int16
	var waitingListType string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.RentalObjectCode, &l.MonthlyRentCents, &l.PublishedFrom, &l.PublishedTo,
		&l.VacantFrom, &status, &waitingListType, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if l.Status, err = models.ParseListingStatus(status); err != nil {
		return nil, err
	}
	l.WaitingListType = models.WaitingListType(waitingListType)

	return l, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.ListingStatus) error {
	query :=
		`UPDATE listings SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, int16(from), int16(to))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("listing %s is not %s: %w", id, from, common.ErrInvalidState)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
