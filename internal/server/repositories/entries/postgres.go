package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.ProjectEntry) (*models.ProjectEntry, error) {

	query :=
		`INSERT INTO project_entries (project_id, version, is_actual, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		entry.ProjectID, entry.Version, entry.IsActual, entry.UpdatedAt).
		Scan(&entry.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.ProjectEntry, error) {
	query :=
		`SELECT id, project_id, version, is_actual, updated_at FROM project_entries
		 WHERE id = $1
		 `

	entry := &models.ProjectEntry{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&entry.ID, &entry.ProjectID, &entry.Version, &entry.IsActual, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ExistsVersion(ctx context.Context, projectID int64, version string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM project_entries WHERE project_id = $1 AND version = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, projectID, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListActual(ctx context.Context, projectID int64) ([]*models.ProjectEntry, error) {
	query :=
		`SELECT id, project_id, version, is_actual, updated_at FROM project_entries
		 WHERE project_id = $1 AND is_actual
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ProjectEntry
	for rows.Next() {
		entry := &models.ProjectEntry{}
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.Version, &entry.IsActual, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListWithImageCounts(ctx context.Context, projectID int64, onlyActual bool) ([]*EntryWithImageCount, error) {
	query :=
		`SELECT e.id, e.project_id, e.version, e.is_actual, e.updated_at, count(i.id)
		 FROM project_entries e
		 LEFT JOIN images i ON i.entry_id = e.id
		 WHERE e.project_id = $1 AND (e.is_actual OR NOT $2)
		 GROUP BY e.id
		 ORDER BY e.id
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID, onlyActual)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*EntryWithImageCount
	for rows.Next() {
		entry := &EntryWithImageCount{}
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.Version, &entry.IsActual, &entry.UpdatedAt, &entry.ImageCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetActuality(ctx context.Context, id int64, actual bool, now time.Time) error {
	query :=
		`UPDATE project_entries SET is_actual = $2, updated_at = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, actual, now)
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

// DeactivateOthers clears is_actual on every entry of the project except
// keepID. Zero affected rows is fine: the project may have had no other
// actual entry.
func (r *PostgresRepository) DeactivateOthers(ctx context.Context, projectID, keepID int64, now time.Time) error {
	query :=
		`UPDATE project_entries SET is_actual = false, updated_at = $3
		 WHERE project_id = $1 AND id <> $2 AND is_actual
		 `

	if _, err := r.db.ExecContext(ctx, query, projectID, keepID, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
