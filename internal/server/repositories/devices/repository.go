package devices

import (
	"context"

	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, device *models.Device) (*models.Device, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetActive(ctx context.Context, id uuid.UUID) (*models.Device, error)
	List(ctx context.Context, onlyActive bool) ([]*models.Device, error)
	ListBySourceHash(ctx context.Context, sourceHash string) ([]*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
