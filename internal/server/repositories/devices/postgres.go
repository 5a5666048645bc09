package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/google/uuid"
)

const deviceColumns = `id, key_hash, source_hash, salt, expires_at, is_active, creator_id, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, device *models.Device) (*models.Device, error) {

	query :=
		`INSERT INTO devices (id, key_hash, source_hash, salt, expires_at, is_active, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		device.ID, device.KeyHash, device.SourceHash, device.Salt,
		device.ExpiresAt, device.IsActive, device.CreatorID).
		Scan(&device.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return device, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetActive(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1 AND is_active`

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context, onlyActive bool) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE is_active OR NOT $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

func (r *PostgresRepository) ListBySourceHash(ctx context.Context, sourceHash string) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE source_hash = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows)
}

// Update rewrites key material and expiry for a refreshed device. The salt
// is intentionally not updated: refresh reuses the stored one.
func (r *PostgresRepository) Update(ctx context.Context, device *models.Device) error {
	query :=
		`UPDATE devices SET key_hash = $2, source_hash = $3, expires_at = $4, is_active = $5
		 WHERE id = $1
		 `

	return r.exec(ctx, query, device.ID, device.KeyHash, device.SourceHash, device.ExpiresAt, device.IsActive)
}

// Deactivate soft-deletes the device. The row is kept for audit and so that
// later validations report the device as missing rather than mismatched.
func (r *PostgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query :=
		`UPDATE devices SET is_active = false
		 WHERE id = $1
		 `

	return r.exec(ctx, query, id)
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

func scanOne(row *sql.Row) (*models.Device, error) {
	device := &models.Device{}
	err := row.Scan(&device.ID, &device.KeyHash, &device.SourceHash, &device.Salt,
		&device.ExpiresAt, &device.IsActive, &device.CreatorID, &device.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

func scanAll(rows *sql.Rows) ([]*models.Device, error) {
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		device := &models.Device{}
		if err := rows.Scan(&device.ID, &device.KeyHash, &device.SourceHash, &device.Salt,
			&device.ExpiresAt, &device.IsActive, &device.CreatorID, &device.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
