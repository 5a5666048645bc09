package projects

import (
	"context"

	"github.com/dmitrijs2005/versiman/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	GetByName(ctx context.Context, name string) (*models.Project, error)
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	UpdateSources(ctx context.Context, id int64, sources []string) error
}
