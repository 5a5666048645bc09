package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/versiman/internal/server/models"
)

// EntryWithImageCount is the read model for entry listings.
type EntryWithImageCount struct {
	models.ProjectEntry
	ImageCount int64
}

type Repository interface {
	Create(ctx context.Context, entry *models.ProjectEntry) (*models.ProjectEntry, error)
	GetByID(ctx context.Context, id int64) (*models.ProjectEntry, error)
	ExistsVersion(ctx context.Context, projectID int64, version string) (bool, error)
	ListActual(ctx context.Context, projectID int64) ([]*models.ProjectEntry, error)
	ListWithImageCounts(ctx context.Context, projectID int64, onlyActual bool) ([]*EntryWithImageCount, error)
	SetActuality(ctx context.Context, id int64, actual bool, now time.Time) error
	DeactivateOthers(ctx context.Context, projectID, keepID int64, now time.Time) error
}
