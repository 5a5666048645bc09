package httpapi

import (
	"io"
	"net/http"

	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/services"
)

// The device surface. Every handler here runs behind requireAPIKey, so the
// context always carries the decoded key. On top of key validation, a
// device may only touch projects whose allowed-source list contains the
// source its key was issued for.

func (s *HTTPServer) authorizeSource(w http.ResponseWriter, r *http.Request, project *models.Project) bool {
	key := deviceKeyFromContext(r.Context())
	for _, src := range project.AvailableSources {
		if src == key.Source {
			return true
		}
	}
	s.logger.Warn(r.Context(), "source not allowed for project",
		"project", project.Name, "source", key.Source, "device", key.DeviceID)
	s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "source not allowed"})
	return false
}

type projectInfoResponse struct {
	Name    string              `json:"name"`
	Entries []entryInfoResponse `json:"actualEntries"`
}

type entryInfoResponse struct {
	ID      int64               `json:"id"`
	Version string              `json:"version"`
	Images  []imageInfoResponse `json:"images"`
}

type imageInfoResponse struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

func (s *HTTPServer) handleDeviceProjectInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	project, err := s.projects.GetProject(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorizeSource(w, r, project) {
		return
	}

	info, err := s.images.GetProjectInfo(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := projectInfoResponse{Name: info.Name, Entries: []entryInfoResponse{}}
	for _, entry := range info.ActualEntries {
		entryResp := entryInfoResponse{ID: entry.ID, Version: entry.Version, Images: []imageInfoResponse{}}
		for _, img := range entry.Images {
			entryResp.Images = append(entryResp.Images, imageInfoResponse{ID: img.ID, Tag: img.Tag})
		}
		resp.Entries = append(resp.Entries, entryResp)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleDeviceEntryCompose(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	project, err := s.images.ProjectForEntry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorizeSource(w, r, project) {
		return
	}

	merged, err := s.images.GetEntryCompose(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, merged); err != nil {
		s.logger.Error(r.Context(), "response write error", "error", err)
	}
}

type publishImageRequest struct {
	ProjectName string `json:"projectName"`
	ServiceName string `json:"serviceName"`
	Tag         string `json:"tag"`
	Version     string `json:"version"`
	ComposeFile string `json:"composeFile"`
}

func (s *HTTPServer) handleDevicePublishImage(w http.ResponseWriter, r *http.Request) {
	var req publishImageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProjectName == "" || req.ServiceName == "" || req.Tag == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "projectName, serviceName and tag are required"})
		return
	}

	project, err := s.projects.GetProject(r.Context(), req.ProjectName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorizeSource(w, r, project) {
		return
	}

	key := deviceKeyFromContext(r.Context())
	err = s.images.PublishImage(r.Context(), services.PublishInput{
		ProjectName: req.ProjectName,
		ServiceName: req.ServiceName,
		Tag:         req.Tag,
		Version:     req.Version,
		ComposeFile: req.ComposeFile,
	}, key.DeviceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "image published",
		"project", req.ProjectName, "service", req.ServiceName, "tag", req.Tag, "device", key.DeviceID)
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *HTTPServer) handleDeviceImageArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	project, err := s.images.ProjectForImage(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.authorizeSource(w, r, project) {
		return
	}

	archive, err := s.images.GetImageArchive(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer archive.Close()

	w.Header().Set("Content-Type", "application/x-tar")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, archive); err != nil {
		s.logger.Error(r.Context(), "archive stream error", "error", err)
	}
}

func (s *HTTPServer) handleDeviceLoadArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.images.LoadImageArchive(r.Context(), r.Body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
