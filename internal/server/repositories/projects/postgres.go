package projects

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {

	query :=
		`INSERT INTO projects (name, creator_id, available_sources)
		 VALUES ($1, $2, string_to_array($3, ','))
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		project.Name, project.CreatorID, strings.Join(project.AvailableSources, ",")).
		Scan(&project.ID, &project.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return project, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	query :=
		`SELECT id, name, creator_id, array_to_string(available_sources, ','), created_at FROM projects
		 WHERE name = $1
		 `

	return scanOne(r.db.QueryRowContext(ctx, query, name))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query :=
		`SELECT id, name, creator_id, array_to_string(available_sources, ','), created_at FROM projects
		 WHERE id = $1
		 `

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Project, error) {
	query :=
		`SELECT id, name, creator_id, array_to_string(available_sources, ','), created_at FROM projects
		 ORDER BY name
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Project
	for rows.Next() {
		project := &models.Project{}
		var sources string
		if err := rows.Scan(&project.ID, &project.Name, &project.CreatorID, &sources, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		project.AvailableSources = splitSources(sources)
		result = append(result, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateSources(ctx context.Context, id int64, sources []string) error {
	query :=
		`UPDATE projects SET available_sources = string_to_array($2, ',')
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, strings.Join(sources, ","))
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

func scanOne(row *sql.Row) (*models.Project, error) {
	project := &models.Project{}
	var sources string
	err := row.Scan(&project.ID, &project.Name, &project.CreatorID, &sources, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	project.AvailableSources = splitSources(sources)
	return project, nil
}

func splitSources(sources string) []string {
	if sources == "" {
		return nil
	}
	return strings.Split(sources, ",")
}
