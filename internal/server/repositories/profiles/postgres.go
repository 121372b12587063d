package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/dbx"
	"github.com/dmitrijs2005/allocator/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LatestByContactCode(ctx context.Context, contactCode string) (*models.ApplicationProfile, error) {
	query :=
		`SELECT id, contact_code, num_adults, num_children, housing_type, housing_reference_status,
			housing_reference_reviewed_at, housing_reference_expires_at, expires_at, created_at
		 FROM application_profiles
		 WHERE contact_code = $1
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	p := &models.ApplicationProfile{}
	var reviewStatus int16

	err := r.db.QueryRowContext(ctx, query, contactCode).Scan(
		&p.ID, &p.ContactCode, &p.NumAdults, &p.NumChildren, &p.HousingType, &reviewStatus,
		&p.HousingReference.ReviewedAt, &p.HousingReference.ExpiresAt, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if p.HousingReference.ReviewStatus, err = models.ParseReviewStatus(reviewStatus); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) Profiles(ctx context.Context, contactCodes []string) (map[string]*models.ApplicationProfile, error) {
	result := make(map[string]*models.ApplicationProfile, len(contactCodes))

	for _, code := range contactCodes {
		if _, ok := result[code]; ok {
			continue
		}
		p, err := r.LatestByContactCode(ctx, code)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		result[code] = p
	}

	return result, nil
}
