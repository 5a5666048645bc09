package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/dbx"
	"github.com/dmitrijs2005/versiman/internal/logging"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/registry"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/devices"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/entries"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/images"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/projects"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/users"
	"github.com/google/uuid"
)

// In-memory repositories backing the service tests. The record-store
// semantics the services rely on (not-found sentinels, uniqueness checks,
// id assignment) are reproduced here so the tests exercise the services'
// decision logic rather than SQL plumbing.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, byID: map[int64]*models.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, common.ErrorConflict
		}
	}
	clone := *user
	clone.ID = r.nextID
	clone.CreatedAt = time.Now().UTC()
	r.nextID++
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.byID {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passHash, salt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PassHash = passHash
	u.Salt = salt
	return nil
}

func (r *fakeUserRepo) UpdateRoles(_ context.Context, id int64, roles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Roles = append([]string(nil), roles...)
	return nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.IsActive = active
	return nil
}

type fakeDeviceRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{byID: map[uuid.UUID]*models.Device{}}
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *models.Device) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *device
	clone.CreatedAt = time.Now().UTC()
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeDeviceRepo) Get(_ context.Context, id uuid.UUID) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *d
	return &out, nil
}

func (r *fakeDeviceRepo) GetActive(_ context.Context, id uuid.UUID) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok || !d.IsActive {
		return nil, common.ErrorNotFound
	}
	out := *d
	return &out, nil
}

func (r *fakeDeviceRepo) List(_ context.Context, onlyActive bool) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Device
	for _, d := range r.byID {
		if onlyActive && !d.IsActive {
			continue
		}
		clone := *d
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeDeviceRepo) ListBySourceHash(_ context.Context, sourceHash string) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Device
	for _, d := range r.byID {
		if d.SourceHash == sourceHash {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) Update(_ context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[device.ID]; !ok {
		return common.ErrorNotFound
	}
	clone := *device
	r.byID[device.ID] = &clone
	return nil
}

func (r *fakeDeviceRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	d.IsActive = false
	return nil
}

type fakeProjectRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{nextID: 1, byID: map[int64]*models.Project{}}
}

func (r *fakeProjectRepo) Create(_ context.Context, project *models.Project) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Name == project.Name {
			return nil, common.ErrorConflict
		}
	}
	clone := *project
	clone.ID = r.nextID
	clone.CreatedAt = time.Now().UTC()
	r.nextID++
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeProjectRepo) GetByName(_ context.Context, name string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Name == name {
			out := *p
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeProjectRepo) GetByID(_ context.Context, id int64) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *p
	return &out, nil
}

func (r *fakeProjectRepo) List(_ context.Context) ([]*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Project
	for _, p := range r.byID {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeProjectRepo) UpdateSources(_ context.Context, id int64, sources []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.AvailableSources = append([]string(nil), sources...)
	return nil
}

type fakeEntryRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.ProjectEntry
	images *fakeImageRepo
}

func newFakeEntryRepo(images *fakeImageRepo) *fakeEntryRepo {
	return &fakeEntryRepo{nextID: 1, byID: map[int64]*models.ProjectEntry{}, images: images}
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *models.ProjectEntry) (*models.ProjectEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	clone.ID = r.nextID
	r.nextID++
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeEntryRepo) GetByID(_ context.Context, id int64) (*models.ProjectEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *e
	return &out, nil
}

func (r *fakeEntryRepo) ExistsVersion(_ context.Context, projectID int64, version string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if e.ProjectID == projectID && e.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEntryRepo) ListActual(_ context.Context, projectID int64) ([]*models.ProjectEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ProjectEntry
	for _, e := range r.byID {
		if e.ProjectID == projectID && e.IsActual {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) ListWithImageCounts(ctx context.Context, projectID int64, onlyActual bool) ([]*entries.EntryWithImageCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entries.EntryWithImageCount
	for _, e := range r.byID {
		if e.ProjectID != projectID || (onlyActual && !e.IsActual) {
			continue
		}
		row := &entries.EntryWithImageCount{ProjectEntry: *e}
		if r.images != nil {
			list, _ := r.images.ListByEntry(ctx, e.ID)
			row.ImageCount = int64(len(list))
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeEntryRepo) SetActuality(_ context.Context, id int64, actual bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.IsActual = actual
	e.UpdatedAt = now
	return nil
}

func (r *fakeEntryRepo) DeactivateOthers(_ context.Context, projectID, keepID int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if e.ProjectID == projectID && e.ID != keepID && e.IsActual {
			e.IsActual = false
			e.UpdatedAt = now
		}
	}
	return nil
}

type fakeImageRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Image
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{nextID: 1, byID: map[int64]*models.Image{}}
}

func (r *fakeImageRepo) Create(_ context.Context, image *models.Image) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *image
	clone.ID = r.nextID
	clone.CreatedAt = time.Now().UTC()
	r.nextID++
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeImageRepo) CreateBatch(ctx context.Context, list []*models.Image) error {
	for _, image := range list {
		if _, err := r.Create(ctx, image); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeImageRepo) GetByID(_ context.Context, id int64) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *img
	return &out, nil
}

func (r *fakeImageRepo) ListByEntry(_ context.Context, entryID int64) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Image
	for _, img := range r.byID {
		if img.EntryID == entryID {
			clone := *img
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) ListActiveByEntry(_ context.Context, entryID int64) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Image
	for _, img := range r.byID {
		if img.EntryID == entryID && img.IsActive {
			clone := *img
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) ListByEntryAndService(_ context.Context, entryID int64, serviceName string) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Image
	for _, img := range r.byID {
		if img.EntryID == entryID && img.ServiceName == serviceName {
			clone := *img
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) ListByIDs(_ context.Context, ids []int64) ([]*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Image
	for _, id := range ids {
		if img, ok := r.byID[id]; ok {
			clone := *img
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) Update(_ context.Context, image *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[image.ID]; !ok {
		return common.ErrorNotFound
	}
	clone := *image
	r.byID[image.ID] = &clone
	return nil
}

func (r *fakeImageRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	img.IsActive = active
	return nil
}

func (r *fakeImageRepo) ReassignEntry(_ context.Context, fromEntryID, toEntryID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, img := range r.byID {
		if img.EntryID == fromEntryID {
			img.EntryID = toEntryID
		}
	}
	return nil
}

type fakeRepoManager struct {
	users    *fakeUserRepo
	devices  *fakeDeviceRepo
	projects *fakeProjectRepo
	entries  *fakeEntryRepo
	images   *fakeImageRepo
}

func newFakeRepoManager() *fakeRepoManager {
	images := newFakeImageRepo()
	return &fakeRepoManager{
		users:    newFakeUserRepo(),
		devices:  newFakeDeviceRepo(),
		projects: newFakeProjectRepo(),
		entries:  newFakeEntryRepo(images),
		images:   images,
	}
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository       { return m.users }
func (m *fakeRepoManager) Devices(dbx.DBTX) devices.Repository   { return m.devices }
func (m *fakeRepoManager) Projects(dbx.DBTX) projects.Repository { return m.projects }
func (m *fakeRepoManager) Entries(dbx.DBTX) entries.Repository   { return m.entries }
func (m *fakeRepoManager) Images(dbx.DBTX) images.Repository     { return m.images }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

// fakeRegistry records operations and serves canned archives.
type fakeRegistry struct {
	mu       sync.Mutex
	known    map[string]bool // tags the remote side knows
	local    map[string]bool // tags present locally
	pulls    []string
	removals []string
	loads    int
	pullErr  error

	exportCtx context.Context // context of the most recent Export
}

func newFakeRegistry(knownTags ...string) *fakeRegistry {
	known := map[string]bool{}
	for _, tag := range knownTags {
		known[tag] = true
	}
	return &fakeRegistry{known: known, local: map[string]bool{}}
}

func (r *fakeRegistry) Pull(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls = append(r.pulls, tag)
	if r.pullErr != nil {
		return r.pullErr
	}
	if !r.known[tag] {
		return registry.ErrImageNotFound
	}
	r.local[tag] = true
	return nil
}

func (r *fakeRegistry) Exists(_ context.Context, tag string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[tag], nil
}

func (r *fakeRegistry) Export(ctx context.Context, tag string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.local[tag] {
		return nil, registry.ErrImageNotFound
	}
	r.exportCtx = ctx
	return &ctxBoundReader{ctx: ctx, r: strings.NewReader("archive:" + tag)}, nil
}

// ctxBoundReader mimics a process-backed export stream: reads fail once
// the context that launched the export is canceled.
type ctxBoundReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxBoundReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (c *ctxBoundReader) Close() error { return nil }

func (r *fakeRegistry) Remove(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals = append(r.removals, tag)
	if !r.local[tag] {
		return registry.ErrImageNotFound
	}
	delete(r.local, tag)
	return nil
}

func (r *fakeRegistry) Load(_ context.Context, rd io.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.Copy(io.Discard, rd); err != nil {
		return err
	}
	r.loads++
	return nil
}

type fakeArchiveStore struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

func newFakeArchiveStore() *fakeArchiveStore {
	return &fakeArchiveStore{data: map[string][]byte{}}
}

func (s *fakeArchiveStore) Put(_ context.Context, tag string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tag] = b
	s.puts++
	return nil
}

func (s *fakeArchiveStore) Get(_ context.Context, tag string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[tag]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }
