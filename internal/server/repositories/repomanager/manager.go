// Package repomanager wires repository implementations to database handles
// so that services can run the same repository code on *sql.DB or inside a
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/devices"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/entries"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/images"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/projects"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/users"
)

type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Devices(db dbx.DBTX) devices.Repository
	Projects(db dbx.DBTX) projects.Repository
	Entries(db dbx.DBTX) entries.Repository
	Images(db dbx.DBTX) images.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
