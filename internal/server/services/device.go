// Package services contains server-side business logic: device identity,
// project/version lifecycle, image publication and user accounts.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/versiman/internal/server/apikey"
	"github.com/dmitrijs2005/versiman/internal/server/hash"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DeviceService owns device identity records and the API keys bound to
// them. Raw keys exist only in the return values of Create and Refresh;
// the store keeps digests.
type DeviceService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	processor *apikey.Processor
	hasher    *hash.Hasher
}

func NewDeviceService(db *sql.DB, repos repomanager.RepositoryManager, processor *apikey.Processor, hasher *hash.Hasher) *DeviceService {
	return &DeviceService{db: db, repos: repos, processor: processor, hasher: hasher}
}

// Create registers a new device and returns the record together with the
// one-time raw key. The creator must be an existing user
// (common.ErrorNotFound otherwise). Source labels are lower-cased here so
// the stored source hash and the hash recomputed at validation agree.
func (s *DeviceService) Create(ctx context.Context, creatorUsername, source string, expires time.Time) (*models.Device, string, error) {
	creator, err := s.repos.Users(s.db).GetByUsername(ctx, strings.ToLower(creatorUsername))
	if err != nil {
		return nil, "", fmt.Errorf("resolving creator: %w", err)
	}

	source = strings.ToLower(source)
	id := uuid.New()
	key := s.processor.Generate(id, source, expires)

	salt := s.hasher.GenerateSalt()
	device := &models.Device{
		ID:         id,
		KeyHash:    s.hasher.Hash(key, salt),
		SourceHash: s.hasher.Hash(source, hash.DefaultSalt),
		Salt:       salt,
		ExpiresAt:  expires.UTC(),
		IsActive:   true,
		CreatorID:  creator.ID,
	}

	device, err = s.repos.Devices(s.db).Create(ctx, device)
	if err != nil {
		return nil, "", fmt.Errorf("creating device: %w", err)
	}
	return device, key, nil
}

// Refresh issues a new key for an existing device, reusing the stored salt,
// and reactivates the device. The old key stops validating the moment the
// new hash is committed.
func (s *DeviceService) Refresh(ctx context.Context, id uuid.UUID, source string, expires time.Time) (*models.Device, string, error) {
	repo := s.repos.Devices(s.db)

	device, err := repo.Get(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("resolving device: %w", err)
	}

	source = strings.ToLower(source)
	key := s.processor.Generate(id, source, expires)

	device.KeyHash = s.hasher.Hash(key, device.Salt)
	device.SourceHash = s.hasher.Hash(source, hash.DefaultSalt)
	device.ExpiresAt = expires.UTC()
	device.IsActive = true

	if err := repo.Update(ctx, device); err != nil {
		return nil, "", fmt.Errorf("updating device: %w", err)
	}
	return device, key, nil
}

// Revoke soft-deletes the device. Subsequent validations of its key report
// the device as not found, not as a key mismatch.
func (s *DeviceService) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Devices(s.db).Deactivate(ctx, id); err != nil {
		return fmt.Errorf("revoking device: %w", err)
	}
	return nil
}

func (s *DeviceService) Get(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	return s.repos.Devices(s.db).Get(ctx, id)
}

func (s *DeviceService) List(ctx context.Context, onlyActive bool) ([]*models.Device, error) {
	return s.repos.Devices(s.db).List(ctx, onlyActive)
}

// ListBySource finds devices registered for a source label by probing the
// store with the label's hash.
func (s *DeviceService) ListBySource(ctx context.Context, source string) ([]*models.Device, error) {
	sourceHash := s.hasher.Hash(strings.ToLower(source), hash.DefaultSalt)
	return s.repos.Devices(s.db).ListBySourceHash(ctx, sourceHash)
}
