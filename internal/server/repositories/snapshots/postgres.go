package snapshots

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

const selectColumns = `SELECT listing_id, offer_id, applicant_id, applicant_status, application_type,
		queue_points, address, has_parking_space, housing_lease_status, priority_tier, sort_order, created_at
		FROM offer_applicants`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateBatch(ctx context.Context, entries []*models.OfferApplicant) error {
	query :=
		`INSERT INTO offer_applicants (listing_id, offer_id, applicant_id, applicant_status, application_type,
			queue_points, address, has_parking_space, housing_lease_status, priority_tier, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at
		 `

	for _, e := range entries {
		err := r.db.QueryRowContext(ctx, query,
			e.ListingID, e.OfferID, e.ApplicantID, int16(e.ApplicantStatus), string(e.ApplicationType),
			e.QueuePoints, e.Address, e.HasParkingSpace, e.HousingLeaseStatus, e.PriorityTier, e.SortOrder,
		).Scan(&e.CreatedAt)
		if err != nil {
			return fmt.Errorf("db error: snapshot row %d: %w", e.SortOrder, err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListByRound(ctx context.Context, roundOfferID string) ([]*models.OfferApplicant, error) {
	return r.list(ctx, selectColumns+` WHERE offer_id = $1 ORDER BY sort_order`, roundOfferID)
}

func (r *PostgresRepository) ListAfter(ctx context.Context, roundOfferID string, after int) ([]*models.OfferApplicant, error) {
	return r.list(ctx, selectColumns+` WHERE offer_id = $1 AND sort_order > $2 ORDER BY sort_order`, roundOfferID, after)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.OfferApplicant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshot: %w", err)
	}
	defer rows.Close()

	var result []*models.OfferApplicant
	for rows.Next() {
		e := &models.OfferApplicant{}
		var status int16
		var applicationType string
		if err := rows.Scan(&e.ListingID, &e.OfferID, &e.ApplicantID, &status, &applicationType,
			&e.QueuePoints, &e.Address, &e.HasParkingSpace, &e.HousingLeaseStatus, &e.PriorityTier,
			&e.SortOrder, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.ApplicantStatus, err = models.ParseApplicantStatus(status); err != nil {
			return nil, err
		}
		e.ApplicationType = models.ApplicationType(applicationType)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
