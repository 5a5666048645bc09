package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, pass_hash, salt, roles, is_active)
		 VALUES ($1, $2, $3, string_to_array($4, ','), $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.PassHash, user.Salt, strings.Join(user.Roles, ","), user.IsActive).
		Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, pass_hash, salt, array_to_string(roles, ','), is_active, created_at FROM users
		 WHERE username = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, pass_hash, salt, array_to_string(roles, ','), is_active, created_at FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT id, username, pass_hash, salt, array_to_string(roles, ','), is_active, created_at FROM users
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user := &models.User{}
		var roles string
		if err := rows.Scan(&user.ID, &user.Username, &user.PassHash, &user.Salt, &roles, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		user.Roles = splitRoles(roles)
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passHash, salt string) error {
	query :=
		`UPDATE users SET pass_hash = $2, salt = $3
		 WHERE id = $1
		 `

	return r.exec(ctx, query, id, passHash, salt)
}

func (r *PostgresRepository) UpdateRoles(ctx context.Context, id int64, roles []string) error {
	query :=
		`UPDATE users SET roles = string_to_array($2, ',')
		 WHERE id = $1
		 `

	return r.exec(ctx, query, id, strings.Join(roles, ","))
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query :=
		`UPDATE users SET is_active = $2
		 WHERE id = $1
		 `

	return r.exec(ctx, query, id, active)
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

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var roles string
	err := row.Scan(&user.ID, &user.Username, &user.PassHash, &user.Salt, &roles, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Roles = splitRoles(roles)
	return user, nil
}

func splitRoles(roles string) []string {
	if roles == "" {
		return nil
	}
	return strings.Split(roles, ",")
}
