package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/versiman/internal/server/models"
)

type createProjectRequest struct {
	Name    string   `json:"name"`
	Sources []string `json:"sources"`
}

type projectResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"createdUtc"`
}

func toProjectResponse(p *models.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, Sources: p.AvailableSources, CreatedAt: p.CreatedAt}
}

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	claims := claimsFromContext(r.Context())
	project, err := s.projects.CreateProject(r.Context(), claims.Username, req.Name, req.Sources)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "project created", "name", project.Name, "creator", claims.Username)
	s.writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (s *HTTPServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type entryResponse struct {
	ID         int64     `json:"id"`
	Version    string    `json:"version"`
	IsActual   bool      `json:"isActual"`
	UpdatedAt  time.Time `json:"updatedUtc"`
	ImageCount int64     `json:"imageCount"`
}

func (s *HTTPServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	onlyActual := r.URL.Query().Get("onlyActual") == "true"

	entries, err := s.projects.ListEntries(r.Context(), r.PathValue("name"), onlyActual)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse{
			ID: e.ID, Version: e.Version, IsActual: e.IsActual,
			UpdatedAt: e.UpdatedAt, ImageCount: e.ImageCount,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type createEntryRequest struct {
	Version    string `json:"version"`
	MakeActual bool   `json:"makeActual"`
}

func (s *HTTPServer) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Version == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "version is required"})
		return
	}

	claims := claimsFromContext(r.Context())
	entry, err := s.projects.CreateEntry(r.Context(), claims.Username, r.PathValue("name"), req.Version, req.MakeActual)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, entryResponse{
		ID: entry.ID, Version: entry.Version, IsActual: entry.IsActual, UpdatedAt: entry.UpdatedAt,
	})
}

func (s *HTTPServer) handleUpdateSources(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Sources []string `json:"sources"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.projects.UpdateSources(r.Context(), id, req.Sources); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *HTTPServer) handleChangeActuality(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Actual bool `json:"actual"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.projects.ChangeEntryActuality(r.Context(), id, req.Actual); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *HTTPServer) handleMigrateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Version string `json:"version"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Version == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "version is required"})
		return
	}

	entry, err := s.projects.MigrateEntry(r.Context(), id, req.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, entryResponse{
		ID: entry.ID, Version: entry.Version, IsActual: entry.IsActual, UpdatedAt: entry.UpdatedAt,
	})
}

type imageResponse struct {
	ID          int64     `json:"id"`
	ServiceName string    `json:"serviceName"`
	Tag         string    `json:"tag"`
	Version     string    `json:"version"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdUtc"`
}

func (s *HTTPServer) handleListImages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	images, err := s.images.ListImages(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]imageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, imageResponse{
			ID: img.ID, ServiceName: img.ServiceName, Tag: img.Tag,
			Version: img.Version, IsActive: img.IsActive, CreatedAt: img.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCopyImages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		ImageIDs []int64 `json:"imageIds"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.ImageIDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "imageIds is required"})
		return
	}

	if err := s.projects.CopyImages(r.Context(), req.ImageIDs, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *HTTPServer) handleChangeImageActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.images.ChangeImageActivity(r.Context(), id, req.Active); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
