package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/logging"
	"github.com/dmitrijs2005/versiman/internal/server/compose"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/registry"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ArchiveStore caches exported image tars outside the container registry.
// A nil store disables caching.
type ArchiveStore interface {
	Put(ctx context.Context, tag string, r io.Reader) error
	Get(ctx context.Context, tag string) (io.ReadCloser, error)
}

// ImageService handles image publication and retrieval for the actual entry
// of a project, and assembles the combined compose document.
//
// Registry calls are blocking I/O against an external daemon; each one runs
// under its own timeout so a stalled registry cannot pin a request forever,
// and PublishImage pulls before it writes so a cancelled request leaves no
// partial record-store mutation.
type ImageService struct {
	db              *sql.DB
	repos           repomanager.RepositoryManager
	registry        registry.ImageRegistry
	merger          *compose.Merger
	archives        ArchiveStore
	registryTimeout time.Duration
	logger          logging.Logger
}

func NewImageService(db *sql.DB, repos repomanager.RepositoryManager, reg registry.ImageRegistry,
	merger *compose.Merger, archives ArchiveStore, registryTimeout time.Duration, logger logging.Logger) *ImageService {
	return &ImageService{
		db:              db,
		repos:           repos,
		registry:        reg,
		merger:          merger,
		archives:        archives,
		registryTimeout: registryTimeout,
		logger:          logger,
	}
}

// PublishInput carries one image publication from a device.
type PublishInput struct {
	ProjectName string
	ServiceName string
	Tag         string
	Version     string
	ComposeFile string
}

// PublishImage records an image under the project's actual entry.
//
// Outcomes: common.ErrorFailure when the creator device is unknown or the
// registry does not know the tag; common.ErrorNotFound when the project has
// no actual entry. On success, older images of the same service are
// deactivated and the row for the given tag is created or updated in place,
// all in one transaction.
func (s *ImageService) PublishImage(ctx context.Context, in PublishInput, creatorID uuid.UUID) error {
	device, err := s.repos.Devices(s.db).Get(ctx, creatorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorFailure
		}
		return fmt.Errorf("resolving device: %w", err)
	}

	project, err := s.repos.Projects(s.db).GetByName(ctx, strings.ToLower(in.ProjectName))
	if err != nil {
		return fmt.Errorf("resolving project: %w", err)
	}

	actual, err := s.repos.Entries(s.db).ListActual(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("resolving actual entry: %w", err)
	}
	if len(actual) == 0 {
		return common.ErrorNotFound
	}
	entry := actual[0]

	// pull before any write: a failed or cancelled pull leaves the store
	// untouched, and a tag the registry does not know is a domain error
	if err := s.pull(ctx, in.Tag); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Images(tx)

		siblings, err := repo.ListByEntryAndService(ctx, entry.ID, in.ServiceName)
		if err != nil {
			return err
		}

		var existing *models.Image
		for _, sibling := range siblings {
			if sibling.Tag == in.Tag {
				existing = sibling
				continue
			}
			if sibling.IsActive {
				if err := repo.SetActive(ctx, sibling.ID, false); err != nil {
					return err
				}
			}
		}

		if existing == nil {
			image := &models.Image{
				EntryID:     entry.ID,
				ServiceName: in.ServiceName,
				Tag:         in.Tag,
				Version:     in.Version,
				ComposeFile: in.ComposeFile,
				IsActive:    true,
				CreatorID:   device.ID,
			}
			_, err := repo.Create(ctx, image)
			return err
		}

		existing.Version = in.Version
		existing.ComposeFile = in.ComposeFile
		existing.IsActive = true
		existing.CreatorID = device.ID
		existing.CreatedAt = now
		return repo.Update(ctx, existing)
	})
	if err != nil {
		return fmt.Errorf("recording image: %w", err)
	}
	return nil
}

// EntryInfo and ImageInfo form the device-facing projection of a project's
// actual state.
type EntryInfo struct {
	ID      int64
	Version string
	Images  []ImageInfo
}

type ImageInfo struct {
	ID  int64
	Tag string
}

type ProjectInfo struct {
	Name          string
	ActualEntries []EntryInfo
}

// GetProjectInfo returns the project's actual entries with their active
// images only.
func (s *ImageService) GetProjectInfo(ctx context.Context, projectName string) (*ProjectInfo, error) {
	project, err := s.repos.Projects(s.db).GetByName(ctx, strings.ToLower(projectName))
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}

	actual, err := s.repos.Entries(s.db).ListActual(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	info := &ProjectInfo{Name: project.Name}
	for _, entry := range actual {
		images, err := s.repos.Images(s.db).ListActiveByEntry(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("listing images: %w", err)
		}

		entryInfo := EntryInfo{ID: entry.ID, Version: entry.Version}
		for _, image := range images {
			entryInfo.Images = append(entryInfo.Images, ImageInfo{ID: image.ID, Tag: image.Tag})
		}
		info.ActualEntries = append(info.ActualEntries, entryInfo)
	}
	return info, nil
}

// ListImages returns every image row of an entry, active or not.
func (s *ImageService) ListImages(ctx context.Context, entryID int64) ([]*models.Image, error) {
	if _, err := s.repos.Entries(s.db).GetByID(ctx, entryID); err != nil {
		return nil, fmt.Errorf("resolving entry: %w", err)
	}
	images, err := s.repos.Images(s.db).ListByEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	return images, nil
}

// GetEntryCompose merges the active images' descriptor fragments of an
// actual entry into one document. A missing entry, a non-actual entry and
// an entry without active images all map to common.ErrorNotFound.
func (s *ImageService) GetEntryCompose(ctx context.Context, entryID int64) (string, error) {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("resolving entry: %w", err)
	}
	if !entry.IsActual {
		return "", common.ErrorNotFound
	}

	images, err := s.repos.Images(s.db).ListActiveByEntry(ctx, entryID)
	if err != nil {
		return "", fmt.Errorf("listing images: %w", err)
	}
	if len(images) == 0 {
		return "", common.ErrorNotFound
	}

	fragments := make([]string, len(images))
	for i, image := range images {
		fragments[i] = image.ComposeFile
	}

	merged, err := s.merger.Merge(fragments)
	if err != nil {
		return "", fmt.Errorf("merging compose fragments: %w", err)
	}
	return merged, nil
}

// ChangeImageActivity toggles an image row. Deactivation additionally
// drops the artifact from the registry's local cache, treating a registry
// "not found" as already done.
func (s *ImageService) ChangeImageActivity(ctx context.Context, imageID int64, active bool) error {
	image, err := s.repos.Images(s.db).GetByID(ctx, imageID)
	if err != nil {
		return fmt.Errorf("resolving image: %w", err)
	}

	if !active {
		rctx, cancel := s.registryContext(ctx)
		err := s.registry.Remove(rctx, image.Tag)
		cancel()
		if err != nil && !errors.Is(err, registry.ErrImageNotFound) {
			return fmt.Errorf("removing image %s: %w", image.Tag, err)
		}
	}

	if err := s.repos.Images(s.db).SetActive(ctx, imageID, active); err != nil {
		return fmt.Errorf("updating image: %w", err)
	}
	return nil
}

// GetImageArchive streams an image as a tar archive, pulling it into the
// registry first when absent. With an archive store configured, cached
// tars are served without touching the registry and fresh exports are
// cached on the way out.
func (s *ImageService) GetImageArchive(ctx context.Context, imageID int64) (io.ReadCloser, error) {
	image, err := s.repos.Images(s.db).GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("resolving image: %w", err)
	}

	if s.archives != nil {
		cached, err := s.archives.Get(ctx, image.Tag)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "archive cache read failed", "tag", image.Tag, "error", err)
		}
	}

	// the context bounding the export must outlive this function: the
	// stream it backs is handed to the caller, so cancel fires on Close
	rctx, cancel := s.registryContext(ctx)

	exists, err := s.registry.Exists(rctx, image.Tag)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("checking image %s: %w", image.Tag, err)
	}
	if !exists {
		if err := s.pull(ctx, image.Tag); err != nil {
			cancel()
			return nil, err
		}
	}

	archive, err := s.registry.Export(rctx, image.Tag)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("exporting image %s: %w", image.Tag, err)
	}

	if s.archives == nil {
		return &cancelOnClose{ReadCloser: archive, cancel: cancel}, nil
	}

	// the export stream is consumed into the cache, then served from it
	putErr := s.archives.Put(ctx, image.Tag, archive)
	archive.Close()
	if putErr != nil {
		s.logger.Warn(ctx, "archive cache write failed", "tag", image.Tag, "error", putErr)
		fresh, err := s.registry.Export(rctx, image.Tag)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("exporting image %s: %w", image.Tag, err)
		}
		return &cancelOnClose{ReadCloser: fresh, cancel: cancel}, nil
	}
	cancel()
	return s.archives.Get(ctx, image.Tag)
}

// cancelOnClose releases the context backing a registry export stream
// once the consumer is done reading it.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// LoadImageArchive imports an uploaded tar archive into the registry.
func (s *ImageService) LoadImageArchive(ctx context.Context, r io.Reader) error {
	rctx, cancel := s.registryContext(ctx)
	defer cancel()

	if err := s.registry.Load(rctx, r); err != nil {
		return fmt.Errorf("loading image archive: %w", err)
	}
	return nil
}

// ProjectForEntry resolves the project an entry belongs to. Used by the
// transport layer for source-based access checks.
func (s *ImageService) ProjectForEntry(ctx context.Context, entryID int64) (*models.Project, error) {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("resolving entry: %w", err)
	}
	return s.repos.Projects(s.db).GetByID(ctx, entry.ProjectID)
}

// ProjectForImage resolves the project an image belongs to.
func (s *ImageService) ProjectForImage(ctx context.Context, imageID int64) (*models.Project, error) {
	image, err := s.repos.Images(s.db).GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("resolving image: %w", err)
	}
	return s.ProjectForEntry(ctx, image.EntryID)
}

func (s *ImageService) pull(ctx context.Context, tag string) error {
	rctx, cancel := s.registryContext(ctx)
	defer cancel()

	if err := s.registry.Pull(rctx, tag); err != nil {
		if errors.Is(err, registry.ErrImageNotFound) {
			return fmt.Errorf("%w: registry does not know tag %s", common.ErrorFailure, tag)
		}
		return fmt.Errorf("pulling image %s: %w", tag, err)
	}
	return nil
}

func (s *ImageService) registryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.registryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.registryTimeout)
}
