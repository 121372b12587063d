package applicants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

const selectColumns = `SELECT id, listing_id, contact_code, national_registration_number, application_date,
		application_type, status, queue_points, address, has_parking_space, housing_lease_status,
		priority_tier, created_at, updated_at
		FROM applicants`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Applicant) (*models.Applicant, error) {
	query :=
		`INSERT INTO applicants (listing_id, contact_code, national_registration_number, application_date,
			application_type, status, queue_points, address, has_parking_space, housing_lease_status, priority_tier)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at
		 `

	if a.Status == 0 {
		a.Status = models.ApplicantActive
	}

	err := r.db.QueryRowContext(ctx, query,
		a.ListingID, a.ContactCode, a.NationalRegistrationNumber, a.ApplicationDate,
		string(a.ApplicationType), int16(a.Status), a.QueuePoints, a.Address, a.HasParkingSpace,
		a.HousingLeaseStatus, a.PriorityTier,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplicant(row scanner) (*models.Applicant, error) {
	a := &models.Applicant{}
	var status int16
	var applicationType string

	if err := row.Scan(&a.ID, &a.ListingID, &a.ContactCode, &a.NationalRegistrationNumber, &a.ApplicationDate,
		&applicationType, &status, &a.QueuePoints, &a.Address, &a.HasParkingSpace, &a.HousingLeaseStatus,
		&a.PriorityTier, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.Status, err = models.ParseApplicantStatus(status); err != nil {
		return nil, err
	}
	a.ApplicationType = models.ApplicationType(applicationType)

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Applicant, error) {
	a, err := scanApplicant(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByListing(ctx context.Context, listingID string) ([]*models.Applicant, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE listing_id = $1 ORDER BY id`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to select applicants: %w", err)
	}
	defer rows.Close()

	var result []*models.Applicant
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.ApplicantStatus) error {
	query :=
		`UPDATE applicants SET status = $3, updated_at = now()
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
		return fmt.Errorf("applicant %s is not %s: %w", id, from, common.ErrInvalidState)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) ReadmitExpired(ctx context.Context, listingID string) (int64, error) {
	query :=
		`UPDATE applicants SET status = $2, updated_at = now()
		 WHERE listing_id = $1 AND status = $3
		 `

	res, err := r.db.ExecContext(ctx, query, listingID, int16(models.ApplicantActive), int16(models.ApplicantOfferExpired))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
