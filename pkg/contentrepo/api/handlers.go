package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

func (s *Server) handleGetRepositoryInfo(w http.ResponseWriter, r *http.Request) {
	root, err := s.service.GetObjectByPath(r.Context(), "/")
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"root_folder_id": root.ID,
		"capabilities": map[string]bool{
			"multifiling":      true,
			"unfiling":         true,
			"versioning":       true,
			"acl":              true,
			"content_ranges":   true,
			"change_tokens":    true,
			"type_inheritance": true,
		},
	})
}

// Create operations

type createFolderRequest struct {
	ParentID   uuid.UUID              `json:"parent_id"`
	TypeID     string                 `json:"type_id"`
	Name       string                 `json:"name"`
	Properties contentrepo.Properties `json:"properties,omitempty"`
	ACL        []contentrepo.Ace      `json:"acl,omitempty"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.CreateFolder(r.Context(), contentrepo.CreateFolderRequest{
		ParentID:   req.ParentID,
		TypeID:     req.TypeID,
		Name:       req.Name,
		Properties: req.Properties,
		ACL:        req.ACL,
		User:       s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, obj)
}

type createDocumentRequest struct {
	ParentID   *uuid.UUID             `json:"parent_id,omitempty"`
	TypeID     string                 `json:"type_id"`
	Name       string                 `json:"name"`
	Properties contentrepo.Properties `json:"properties,omitempty"`
	ACL        []contentrepo.Ace      `json:"acl,omitempty"`
	Major      bool                   `json:"major,omitempty"`
	Comment    string                 `json:"comment,omitempty"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.CreateDocument(r.Context(), contentrepo.CreateDocumentRequest{
		ParentID:   req.ParentID,
		TypeID:     req.TypeID,
		Name:       req.Name,
		Properties: req.Properties,
		ACL:        req.ACL,
		User:       s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, obj)
}

func (s *Server) handleCreateVersionedDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.CreateVersionedDocument(r.Context(), contentrepo.CreateVersionedDocumentRequest{
		ParentID:       req.ParentID,
		TypeID:         req.TypeID,
		Name:           req.Name,
		Properties:     req.Properties,
		ACL:            req.ACL,
		Major:          req.Major,
		CheckinComment: req.Comment,
		User:           s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, obj)
}

// Lookup

func objectID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "objectID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid object id", contentrepo.ErrInvalidArgument)
	}
	return id, nil
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := s.service.GetObject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func (s *Server) handleGetObjectByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, r, fmt.Errorf("%w: path query parameter is required", contentrepo.ErrInvalidArgument))
		return
	}
	obj, err := s.service.GetObjectByPath(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func (s *Server) handleGetChildren(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	children, err := s.service.GetChildren(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, children)
}

func (s *Server) handleGetFolderPath(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := s.service.GetFolderPath(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"path": path})
}

// Mutation

type updatePropertiesRequest struct {
	ChangeToken string                 `json:"change_token"`
	Name        string                 `json:"name,omitempty"`
	Properties  contentrepo.Properties `json:"properties,omitempty"`
}

func (s *Server) handleUpdateProperties(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updatePropertiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.UpdateProperties(r.Context(), contentrepo.UpdatePropertiesRequest{
		ID:          id,
		ChangeToken: req.ChangeToken,
		Name:        req.Name,
		Properties:  req.Properties,
		User:        s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	allVersions := r.URL.Query().Get("all_versions") != "false"
	if err := s.service.DeleteObject(r.Context(), id, allVersions, s.principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	failed, err := s.service.DeleteTree(r.Context(), contentrepo.DeleteTreeRequest{
		FolderID:          id,
		ContinueOnFailure: r.URL.Query().Get("continue_on_failure") == "true",
		User:              s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"failed_ids": failed})
}

// Filing

type moveRequest struct {
	SourceFolderID uuid.UUID `json:"source_folder_id"`
	TargetFolderID uuid.UUID `json:"target_folder_id"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.Move(r.Context(), contentrepo.MoveRequest{
		ID:             id,
		SourceFolderID: req.SourceFolderID,
		TargetFolderID: req.TargetFolderID,
		User:           s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func folderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "folderID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid folder id", contentrepo.ErrInvalidArgument)
	}
	return id, nil
}

func (s *Server) handleAddToFolder(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fid, err := folderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.AddObjectToFolder(r.Context(), id, fid, s.principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFromFolder(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fid, err := folderID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.RemoveObjectFromFolder(r.Context(), id, fid, s.principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Versioning

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pwc, err := s.service.CheckOut(r.Context(), contentrepo.CheckOutRequest{
		SeriesID: id,
		User:     s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, pwc)
}

type checkInRequest struct {
	Major      bool                   `json:"major"`
	Comment    string                 `json:"comment,omitempty"`
	Properties contentrepo.Properties `json:"properties,omitempty"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	version, err := s.service.CheckIn(r.Context(), contentrepo.CheckInRequest{
		SeriesID:   id,
		Major:      req.Major,
		Properties: req.Properties,
		Comment:    req.Comment,
		User:       s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, version)
}

func (s *Server) handleCancelCheckOut(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.service.CancelCheckOut(r.Context(), contentrepo.CancelCheckOutRequest{
		SeriesID: id,
		User:     s.principal(r),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAllVersions(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	versions, err := s.service.GetAllVersions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, versions)
}

func (s *Server) handleGetLatestVersion(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	majorOnly := r.URL.Query().Get("major_only") == "true"
	version, err := s.service.GetLatestVersion(r.Context(), id, majorOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, version)
}

// Content

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	obj, err := s.service.SetContent(r.Context(), contentrepo.SetContentRequest{
		ID:        id,
		Overwrite: r.URL.Query().Get("overwrite") != "false",
		Content: contentrepo.ContentPayload{
			Reader:   r.Body,
			MimeType: r.Header.Get("Content-Type"),
			FileName: r.Header.Get("X-Filename"),
		},
		User: s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	offset, length, partial, err := parseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	reader, ref, err := s.service.GetContent(r.Context(), contentrepo.GetContentRequest{
		ID:     id,
		Offset: offset,
		Length: length,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	if ref.MimeType != "" {
		w.Header().Set("Content-Type", ref.MimeType)
	}
	if ref.FileName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.FileName))
	}
	w.Header().Set("Accept-Ranges", "bytes")

	if partial {
		end := ref.Size - 1
		if length >= 0 && offset+length-1 < end {
			end = offset + length - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, ref.Size))
		w.WriteHeader(http.StatusPartialContent)
	}
	io.Copy(w, reader)
}

// parseRangeHeader handles a single bytes range of the form "bytes=a-" or
// "bytes=a-b". Suffix ranges and multi-range requests are not supported.
func parseRangeHeader(header string) (offset, length int64, partial bool, err error) {
	if header == "" {
		return 0, -1, false, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false, fmt.Errorf("%w: unsupported Range header %q", contentrepo.ErrInvalidArgument, header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return 0, 0, false, fmt.Errorf("%w: unsupported Range header %q", contentrepo.ErrInvalidArgument, header)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false, fmt.Errorf("%w: invalid range start %q", contentrepo.ErrInvalidArgument, startStr)
	}
	if endStr == "" {
		return start, -1, true, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return 0, 0, false, fmt.Errorf("%w: invalid range end %q", contentrepo.ErrInvalidArgument, endStr)
	}
	return start, end - start + 1, true, nil
}

func (s *Server) handleGetContentURL(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	url, err := s.service.GetContentURL(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"url": url})
}

// ACL and capabilities

func (s *Server) handleGetACL(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acl, err := s.service.GetACL(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, acl)
}

type applyACLRequest struct {
	Add         []contentrepo.Ace          `json:"add,omitempty"`
	Remove      []contentrepo.Ace          `json:"remove,omitempty"`
	Propagation contentrepo.AclPropagation `json:"propagation,omitempty"`
}

func (s *Server) handleApplyACL(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req applyACLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}

	obj, err := s.service.ApplyACL(r.Context(), contentrepo.ApplyACLRequest{
		ID:          id,
		Add:         req.Add,
		Remove:      req.Remove,
		Propagation: req.Propagation,
		User:        s.principal(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, obj)
}

func (s *Server) handleGetAllowableActions(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	actions, err := s.service.GetAllowableActions(r.Context(), id, s.principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, actions)
}

// Types

func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.service.Types().List())
}

func (s *Server) handleGetType(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Types().Get(chi.URLParam(r, "typeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, def)
}

func (s *Server) handleRegisterType(w http.ResponseWriter, r *http.Request) {
	var def contentrepo.TypeDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", contentrepo.ErrInvalidArgument, err))
		return
	}
	if err := s.service.Types().Register(def); err != nil {
		writeError(w, r, err)
		return
	}

	registered, err := s.service.Types().Get(def.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, registered)
}
