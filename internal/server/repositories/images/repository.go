package images

import (
	"context"

	"github.com/dmitrijs2005/versiman/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, image *models.Image) (*models.Image, error)
	CreateBatch(ctx context.Context, images []*models.Image) error
	GetByID(ctx context.Context, id int64) (*models.Image, error)
	ListByEntry(ctx context.Context, entryID int64) ([]*models.Image, error)
	ListActiveByEntry(ctx context.Context, entryID int64) ([]*models.Image, error)
	ListByEntryAndService(ctx context.Context, entryID int64, serviceName string) ([]*models.Image, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Image, error)
	Update(ctx context.Context, image *models.Image) error
	SetActive(ctx context.Context, id int64, active bool) error
	ReassignEntry(ctx context.Context, fromEntryID, toEntryID int64) error
}
