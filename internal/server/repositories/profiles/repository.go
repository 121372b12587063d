// Package profiles reads applicant application profiles and their housing
// reference reviews. The engine never writes them.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/server/models"
)

type Repository interface {
	// LatestByContactCode returns the most recent profile of a contact or
	// common.ErrorNotFound.
	LatestByContactCode(ctx context.Context, contactCode string) (*models.ApplicationProfile, error)

	// Profiles returns the latest profile per contact code. Contacts without
	// a profile are absent from the map.
	Profiles(ctx context.Context, contactCodes []string) (map[string]*models.ApplicationProfile, error)
}
