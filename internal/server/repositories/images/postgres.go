package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/server/models"
)

const imageColumns = `id, entry_id, service_name, tag, version, compose_file, is_active, creator_id, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, image *models.Image) (*models.Image, error) {

	query :=
		`INSERT INTO images (entry_id, service_name, tag, version, compose_file, is_active, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		image.EntryID, image.ServiceName, image.Tag, image.Version,
		image.ComposeFile, image.IsActive, image.CreatorID).
		Scan(&image.ID, &image.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return image, nil
}

// CreateBatch inserts all rows through the same handle; run it inside
// dbx.WithTx when the batch must be all-or-nothing.
func (r *PostgresRepository) CreateBatch(ctx context.Context, images []*models.Image) error {
	for _, image := range images {
		if _, err := r.Create(ctx, image); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	image := &models.Image{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&image.ID, &image.EntryID, &image.ServiceName, &image.Tag, &image.Version,
			&image.ComposeFile, &image.IsActive, &image.CreatorID, &image.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}

func (r *PostgresRepository) ListByEntry(ctx context.Context, entryID int64) ([]*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE entry_id = $1 ORDER BY id`

	return r.queryAll(ctx, query, entryID)
}

func (r *PostgresRepository) ListActiveByEntry(ctx context.Context, entryID int64) ([]*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE entry_id = $1 AND is_active ORDER BY id`

	return r.queryAll(ctx, query, entryID)
}

func (r *PostgresRepository) ListByEntryAndService(ctx context.Context, entryID int64, serviceName string) ([]*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE entry_id = $1 AND service_name = $2 ORDER BY id`

	return r.queryAll(ctx, query, entryID, serviceName)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + imageColumns + ` FROM images WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`

	return r.queryAll(ctx, query, args...)
}

func (r *PostgresRepository) Update(ctx context.Context, image *models.Image) error {
	query :=
		`UPDATE images SET service_name = $2, tag = $3, version = $4, compose_file = $5,
		 is_active = $6, creator_id = $7, created_at = $8
		 WHERE id = $1
		 `

	return r.exec(ctx, query, image.ID, image.ServiceName, image.Tag, image.Version,
		image.ComposeFile, image.IsActive, image.CreatorID, image.CreatedAt)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query :=
		`UPDATE images SET is_active = $2
		 WHERE id = $1
		 `

	return r.exec(ctx, query, id, active)
}

// ReassignEntry moves every image of one entry to another. Zero affected
// rows is fine: migrating an empty entry is legal.
func (r *PostgresRepository) ReassignEntry(ctx context.Context, fromEntryID, toEntryID int64) error {
	query :=
		`UPDATE images SET entry_id = $2
		 WHERE entry_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, fromEntryID, toEntryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) queryAll(ctx context.Context, query string, args ...any) ([]*models.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		image := &models.Image{}
		if err := rows.Scan(&image.ID, &image.EntryID, &image.ServiceName, &image.Tag, &image.Version,
			&image.ComposeFile, &image.IsActive, &image.CreatorID, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
