package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a named deployable unit. Name and AvailableSources are stored
// lower-cased.
type Project struct {
	ID               int64
	Name             string
	CreatorID        int64
	AvailableSources []string
	CreatedAt        time.Time
}

// ProjectEntry is one version of a project. At most one entry per project
// has IsActual=true at any committed state.
type ProjectEntry struct {
	ID        int64
	ProjectID int64
	Version   string
	IsActual  bool
	UpdatedAt time.Time
}

// Image is one published artifact within an entry. ComposeFile holds the
// raw docker-compose fragment merged into the combined project document.
type Image struct {
	ID          int64
	EntryID     int64
	ServiceName string
	Tag         string
	Version     string
	ComposeFile string
	IsActive    bool
	CreatorID   uuid.UUID
	CreatedAt   time.Time
}
