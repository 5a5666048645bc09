package users

import (
	"context"

	"github.com/dmitrijs2005/versiman/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passHash, salt string) error
	UpdateRoles(ctx context.Context, id int64, roles []string) error
	SetActive(ctx context.Context, id int64, active bool) error
}
