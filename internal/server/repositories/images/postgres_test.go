package images

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/google/uuid"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const imageColsRe = `id,\s*entry_id,\s*service_name,\s*tag,\s*version,\s*compose_file,\s*is_active,\s*creator_id,\s*created_at`

func imageRows(images ...*models.Image) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "entry_id", "service_name", "tag", "version", "compose_file", "is_active", "creator_id", "created_at"})
	for _, img := range images {
		rows.AddRow(img.ID, img.EntryID, img.ServiceName, img.Tag, img.Version, img.ComposeFile, img.IsActive, img.CreatorID, img.CreatedAt)
	}
	return rows
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+images\s*\(entry_id,\s*service_name,\s*tag,\s*version,\s*compose_file,\s*is_active,\s*creator_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+id,\s*created_at\s*$`

	creator := uuid.New()
	created := time.Now().UTC()
	mock.ExpectQuery(q).
		WithArgs(int64(9), "api", "registry/api:1", "1.0.0", "services: {}", true, creator).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), created))

	img := &models.Image{EntryID: 9, ServiceName: "api", Tag: "registry/api:1",
		Version: "1.0.0", ComposeFile: "services: {}", IsActive: true, CreatorID: creator}
	got, err := repo.Create(context.Background(), img)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 3 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected image: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+images\b`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Image{EntryID: 9})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreateBatch_StopsOnFirstError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+images\b`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+images\b`).
		WillReturnError(errors.New("db down"))

	err := repo.CreateBatch(context.Background(), []*models.Image{
		{EntryID: 9, ServiceName: "api"},
		{EntryID: 9, ServiceName: "web"},
		{EntryID: 9, ServiceName: "db"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no insert beyond the failing one expected: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+` + imageColsRe + `\s+FROM\s+images\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestListActiveByEntry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	img := &models.Image{ID: 3, EntryID: 9, ServiceName: "api", Tag: "registry/api:1",
		IsActive: true, CreatorID: uuid.New(), CreatedAt: time.Now()}

	mock.ExpectQuery(`(?s)^SELECT\s+`+imageColsRe+`\s+FROM\s+images\s+WHERE\s+entry_id\s*=\s*\$1\s+AND\s+is_active\s+ORDER\s+BY\s+id\s*$`).
		WithArgs(int64(9)).
		WillReturnRows(imageRows(img))

	got, err := repo.ListActiveByEntry(context.Background(), 9)
	if err != nil {
		t.Fatalf("ListActiveByEntry error: %v", err)
	}
	if len(got) != 1 || got[0].Tag != "registry/api:1" {
		t.Fatalf("unexpected images: %+v", got)
	}
}

func TestListByEntryAndService(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	img := &models.Image{ID: 3, EntryID: 9, ServiceName: "api", Tag: "registry/api:1",
		CreatorID: uuid.New(), CreatedAt: time.Now()}

	mock.ExpectQuery(`(?s)^SELECT\s+`+imageColsRe+`\s+FROM\s+images\s+WHERE\s+entry_id\s*=\s*\$1\s+AND\s+service_name\s*=\s*\$2\s+ORDER\s+BY\s+id\s*$`).
		WithArgs(int64(9), "api").
		WillReturnRows(imageRows(img))

	got, err := repo.ListByEntryAndService(context.Background(), 9, "api")
	if err != nil {
		t.Fatalf("ListByEntryAndService error: %v", err)
	}
	if len(got) != 1 || got[0].ServiceName != "api" {
		t.Fatalf("unexpected images: %+v", got)
	}
}

func TestListByIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := &models.Image{ID: 3, EntryID: 9, ServiceName: "api", CreatorID: uuid.New(), CreatedAt: time.Now()}
	b := &models.Image{ID: 4, EntryID: 9, ServiceName: "web", CreatorID: uuid.New(), CreatedAt: time.Now()}

	mock.ExpectQuery(`(?s)^SELECT\s+`+imageColsRe+`\s+FROM\s+images\s+WHERE\s+id\s+IN\s+\(\$1,\s*\$2\)\s+ORDER\s+BY\s+id\s*$`).
		WithArgs(int64(3), int64(4)).
		WillReturnRows(imageRows(a, b))

	got, err := repo.ListByIDs(context.Background(), []int64{3, 4})
	if err != nil {
		t.Fatalf("ListByIDs error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected images: %+v", got)
	}
}

func TestListByIDs_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.ListByIDs(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("empty input must be a no-op, got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}

func TestSetActive_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+images\s+SET\s+is_active\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs(int64(404), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), 404, false)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestReassignEntry_ZeroRowsIsFine(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+images\s+SET\s+entry_id\s*=\s*\$2\s+WHERE\s+entry_id\s*=\s*\$1\s*$`).
		WithArgs(int64(9), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ReassignEntry(context.Background(), 9, 10); err != nil {
		t.Fatalf("ReassignEntry error: %v", err)
	}
}
