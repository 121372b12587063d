package offers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

const selectColumns = `SELECT id, listing_id, applicant_id, round_offer_id, sort_order, status,
		sent_at, expires_at, answered_at, created_at, updated_at
		FROM offers`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the offer with its caller-assigned id so a round-opening
// offer can reference itself through round_offer_id.
func (r *PostgresRepository) Create(ctx context.Context, o *models.Offer) error {
	query :=
		`INSERT INTO offers (id, listing_id, applicant_id, round_offer_id, sort_order, status, sent_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		o.ID, o.ListingID, o.ApplicantID, o.RoundOfferID, o.SortOrder, int16(o.Status), o.SentAt, o.ExpiresAt,
	).Scan(&o.CreatedAt, &o.UpdatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(row scanner) (*models.Offer, error) {
	o := &models.Offer{}
	var status int16

	if err := row.Scan(&o.ID, &o.ListingID, &o.ApplicantID, &o.RoundOfferID, &o.SortOrder, &status,
		&o.SentAt, &o.ExpiresAt, &o.AnsweredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if o.Status, err = models.ParseOfferStatus(status); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Offer, error) {
	o, err := scanOffer(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Offer, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) GetPending(ctx context.Context, listingID string) (*models.Offer, error) {
	return r.getOne(ctx, fmt.Sprintf(`%s WHERE listing_id = $1 AND status = %d`, selectColumns, models.OfferPending), listingID)
}

func (r *PostgresRepository) Resolve(ctx context.Context, id string, to models.OfferStatus, answeredAt *time.Time) error {
	if !to.Terminal() {
		return fmt.Errorf("offer cannot be resolved to %s: %w", to, common.ErrInvalidState)
	}

	query :=
		`UPDATE offers SET status = $2, answered_at = $3, updated_at = now()
		 WHERE id = $1 AND status = $4
		 `

	res, err := r.db.ExecContext(ctx, query, id, int16(to), answeredAt, int16(models.OfferPending))
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
		return fmt.Errorf("offer %s is not pending: %w", id, common.ErrInvalidState)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time, after *Cursor, limit int) ([]*models.Offer, error) {
	query := selectColumns + `
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at, id
		LIMIT $3`
	args := []any{int16(models.OfferPending), now, limit}

	if after != nil {
		query = selectColumns + `
		WHERE status = $1 AND expires_at <= $2 AND (expires_at, id) > ($4, $5)
		ORDER BY expires_at, id
		LIMIT $3`
		args = append(args, after.ExpiresAt, after.ID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired offers: %w", err)
	}
	defer rows.Close()

	var result []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
