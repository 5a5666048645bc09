// Package httpapi exposes the service layer over a JSON HTTP API. Two
// surfaces share one server: administrative endpoints guarded by JWT role
// checks, and device endpoints guarded by the API-key header.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/versiman/internal/logging"
	"github.com/dmitrijs2005/versiman/internal/server/apikey"
	"github.com/dmitrijs2005/versiman/internal/server/auth"
	"github.com/dmitrijs2005/versiman/internal/server/services"
)

type HTTPServer struct {
	address      string
	apiKeyHeader string
	jwtSecret    []byte

	validator *apikey.Validator
	users     *services.UserService
	devices   *services.DeviceService
	projects  *services.ProjectService
	images    *services.ImageService

	logger logging.Logger
}

func NewHTTPServer(address, apiKeyHeader string, jwtSecret []byte, validator *apikey.Validator,
	users *services.UserService, devices *services.DeviceService,
	projects *services.ProjectService, images *services.ImageService,
	logger logging.Logger) *HTTPServer {
	return &HTTPServer{
		address:      address,
		apiKeyHeader: apiKeyHeader,
		jwtSecret:    jwtSecret,
		validator:    validator,
		users:        users,
		devices:      devices,
		projects:     projects,
		images:       images,
		logger:       logger.With("module", "http_server"),
	}
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("POST /api/users", s.requireRole(auth.RoleCreateUser, s.handleCreateUser))
	mux.Handle("GET /api/users", s.requireRole(auth.RoleGetUsers, s.handleListUsers))
	mux.Handle("PUT /api/users/{id}/password", s.requireRole(auth.RoleChangePassword, s.handleChangePassword))
	mux.Handle("PUT /api/users/{id}/roles", s.requireRole(auth.RoleUpdateUserRole, s.handleUpdateRoles))
	mux.Handle("PUT /api/users/{id}/active", s.requireRole(auth.RoleDeleteUser, s.handleSetUserActive))

	mux.Handle("POST /api/devices", s.requireRole(auth.RoleCreateDevice, s.handleCreateDevice))
	mux.Handle("GET /api/devices", s.requireRole(auth.RoleListDevices, s.handleListDevices))
	mux.Handle("POST /api/devices/{id}/refresh", s.requireRole(auth.RoleUpdateDevice, s.handleRefreshDevice))
	mux.Handle("DELETE /api/devices/{id}", s.requireRole(auth.RoleDeleteDevice, s.handleRevokeDevice))

	mux.Handle("POST /api/projects", s.requireRole(auth.RoleCreateProject, s.handleCreateProject))
	mux.Handle("GET /api/projects", s.requireRole(auth.RoleGetProjects, s.handleListProjects))
	mux.Handle("GET /api/projects/{name}/entries", s.requireRole(auth.RoleGetProjects, s.handleListEntries))
	mux.Handle("POST /api/projects/{name}/entries", s.requireRole(auth.RoleUpdateProject, s.handleCreateEntry))
	mux.Handle("PUT /api/projects/{id}/sources", s.requireRole(auth.RoleUpdateProject, s.handleUpdateSources))
	mux.Handle("PUT /api/entries/{id}/actuality", s.requireRole(auth.RoleUpdateProject, s.handleChangeActuality))
	mux.Handle("POST /api/entries/{id}/migrate", s.requireRole(auth.RoleUpdateProject, s.handleMigrateEntry))
	mux.Handle("GET /api/entries/{id}/images", s.requireRole(auth.RoleGetProjects, s.handleListImages))
	mux.Handle("POST /api/entries/{id}/images/copy", s.requireRole(auth.RoleUpdateProject, s.handleCopyImages))
	mux.Handle("PUT /api/images/{id}/active", s.requireRole(auth.RoleUpdateProject, s.handleChangeImageActivity))

	mux.Handle("GET /device/projects/{name}", s.requireAPIKey(s.handleDeviceProjectInfo))
	mux.Handle("GET /device/entries/{id}/compose", s.requireAPIKey(s.handleDeviceEntryCompose))
	mux.Handle("POST /device/images", s.requireAPIKey(s.handleDevicePublishImage))
	mux.Handle("GET /device/images/{id}/archive", s.requireAPIKey(s.handleDeviceImageArchive))
	mux.Handle("POST /device/images/archive", s.requireAPIKey(s.handleDeviceLoadArchive))

	return mux
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
