package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/entries"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/repomanager"
)

// ProjectService enforces the project/entry lifecycle: unique names and
// versions, and the rule that at most one entry per project is actual at
// any committed state. Every deactivate-others-then-write flow runs inside
// one transaction so concurrent actuality flips serialize on the store.
type ProjectService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewProjectService(db *sql.DB, repos repomanager.RepositoryManager) *ProjectService {
	return &ProjectService{db: db, repos: repos}
}

// CreateProject registers a named project. Returns common.ErrorNotFound if
// the creator is unknown and common.ErrorConflict on a duplicate name.
// Name and source labels are lower-cased at this boundary.
func (s *ProjectService) CreateProject(ctx context.Context, creatorUsername, name string, sources []string) (*models.Project, error) {
	creator, err := s.repos.Users(s.db).GetByUsername(ctx, strings.ToLower(creatorUsername))
	if err != nil {
		return nil, fmt.Errorf("resolving creator: %w", err)
	}

	name = strings.ToLower(name)
	_, err = s.repos.Projects(s.db).GetByName(ctx, name)
	if err == nil {
		return nil, common.ErrorConflict
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("checking project name: %w", err)
	}

	lowered := make([]string, len(sources))
	for i, src := range sources {
		lowered[i] = strings.ToLower(src)
	}

	project := &models.Project{
		Name:             name,
		CreatorID:        creator.ID,
		AvailableSources: lowered,
	}
	project, err = s.repos.Projects(s.db).Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return project, nil
}

// CreateEntry adds a version to a project. With makeActual set, every other
// entry of the project is deactivated in the same transaction that inserts
// the new one, so no read can ever observe two actual entries.
func (s *ProjectService) CreateEntry(ctx context.Context, creatorUsername, projectName, version string, makeActual bool) (*models.ProjectEntry, error) {
	if _, err := s.repos.Users(s.db).GetByUsername(ctx, strings.ToLower(creatorUsername)); err != nil {
		return nil, fmt.Errorf("resolving creator: %w", err)
	}

	project, err := s.repos.Projects(s.db).GetByName(ctx, strings.ToLower(projectName))
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}

	version = strings.ToLower(version)
	exists, err := s.repos.Entries(s.db).ExistsVersion(ctx, project.ID, version)
	if err != nil {
		return nil, fmt.Errorf("checking version: %w", err)
	}
	if exists {
		return nil, common.ErrorConflict
	}

	entry := &models.ProjectEntry{
		ProjectID: project.ID,
		Version:   version,
		IsActual:  makeActual,
		UpdatedAt: time.Now().UTC(),
	}

	var created *models.ProjectEntry
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Entries(tx)
		created, err = repo.Create(ctx, entry)
		if err != nil {
			return err
		}
		if makeActual {
			return repo.DeactivateOthers(ctx, project.ID, created.ID, created.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}
	return created, nil
}

// ChangeEntryActuality flips an entry's actual flag. Setting it true
// deactivates every other entry of the same project as a side effect.
func (s *ProjectService) ChangeEntryActuality(ctx context.Context, entryID int64, actual bool) error {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("resolving entry: %w", err)
	}

	now := time.Now().UTC()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Entries(tx)
		if err := repo.SetActuality(ctx, entryID, actual, now); err != nil {
			return err
		}
		if actual {
			return repo.DeactivateOthers(ctx, entry.ProjectID, entryID, now)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("changing actuality: %w", err)
	}
	return nil
}

// MigrateEntry creates a fresh non-actual entry under a new version and
// moves the source entry's images to it.
func (s *ProjectService) MigrateEntry(ctx context.Context, entryID int64, newVersion string) (*models.ProjectEntry, error) {
	entry, err := s.repos.Entries(s.db).GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("resolving entry: %w", err)
	}

	newVersion = strings.ToLower(newVersion)
	exists, err := s.repos.Entries(s.db).ExistsVersion(ctx, entry.ProjectID, newVersion)
	if err != nil {
		return nil, fmt.Errorf("checking version: %w", err)
	}
	if exists {
		return nil, common.ErrorConflict
	}

	newEntry := &models.ProjectEntry{
		ProjectID: entry.ProjectID,
		Version:   newVersion,
		IsActual:  false,
		UpdatedAt: time.Now().UTC(),
	}

	var created *models.ProjectEntry
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err = s.repos.Entries(tx).Create(ctx, newEntry)
		if err != nil {
			return err
		}
		return s.repos.Images(tx).ReassignEntry(ctx, entry.ID, created.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("migrating entry: %w", err)
	}
	return created, nil
}

// CopyImages duplicates the given images into the target entry. The
// operation is all-or-nothing: if any id does not resolve, nothing is
// written and common.ErrorFailure is returned. Original rows are untouched.
func (s *ProjectService) CopyImages(ctx context.Context, imageIDs []int64, targetEntryID int64) error {
	if _, err := s.repos.Entries(s.db).GetByID(ctx, targetEntryID); err != nil {
		return fmt.Errorf("resolving target entry: %w", err)
	}

	originals, err := s.repos.Images(s.db).ListByIDs(ctx, imageIDs)
	if err != nil {
		return fmt.Errorf("resolving images: %w", err)
	}
	if len(originals) != len(imageIDs) {
		return common.ErrorFailure
	}

	copies := make([]*models.Image, len(originals))
	for i, original := range originals {
		copies[i] = &models.Image{
			EntryID:     targetEntryID,
			ServiceName: original.ServiceName,
			Tag:         original.Tag,
			Version:     original.Version,
			ComposeFile: original.ComposeFile,
			IsActive:    true,
			CreatorID:   original.CreatorID,
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Images(tx).CreateBatch(ctx, copies)
	})
	if err != nil {
		return fmt.Errorf("copying images: %w", err)
	}
	return nil
}

// UpdateSources replaces a project's allowed source labels.
func (s *ProjectService) UpdateSources(ctx context.Context, projectID int64, sources []string) error {
	lowered := make([]string, len(sources))
	for i, src := range sources {
		lowered[i] = strings.ToLower(src)
	}
	if err := s.repos.Projects(s.db).UpdateSources(ctx, projectID, lowered); err != nil {
		return fmt.Errorf("updating sources: %w", err)
	}
	return nil
}

func (s *ProjectService) GetProject(ctx context.Context, name string) (*models.Project, error) {
	return s.repos.Projects(s.db).GetByName(ctx, strings.ToLower(name))
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]*models.Project, error) {
	return s.repos.Projects(s.db).List(ctx)
}

// ListEntries returns a project's entries (all or only actual) with image
// counts.
func (s *ProjectService) ListEntries(ctx context.Context, projectName string, onlyActual bool) ([]*entries.EntryWithImageCount, error) {
	project, err := s.repos.Projects(s.db).GetByName(ctx, strings.ToLower(projectName))
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}
	return s.repos.Entries(s.db).ListWithImageCounts(ctx, project.ID, onlyActual)
}
