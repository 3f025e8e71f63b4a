package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/obsidian/internal/auth"
	"github.com/sakif/obsidian/internal/service"
)

// BoardHandler serves projects, rows, work items, comments and files.
// Every route it serves sits behind auth.RequireAuth.
type BoardHandler struct {
	board          *service.BoardService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewBoardHandler creates a BoardHandler. maxUploadBytes bounds the request
// body of a file upload.
func NewBoardHandler(board *service.BoardService, maxUploadBytes int64, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{
		board:          board,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// callerID returns the authenticated user. RequireAuth guarantees it is set;
// the false branch only fires if a route is registered outside the group.
func (h *BoardHandler) callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
	}
	return id, ok
}

type projectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type memberRequest struct {
	Email string `json:"email"`
}

// HandleListProjects returns the projects the caller owns or is a member of.
//
// HTTP: GET /api/projects
func (h *BoardHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}

	projects, err := h.board.ListProjects(r.Context(), caller)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleCreateProject creates a project owned by the caller.
//
// HTTP: POST /api/projects
// REQUEST BODY: {"name": "Launch", "description": "..."}
func (h *BoardHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	project, err := h.board.CreateProject(r.Context(), caller, deref(req.Name), deref(req.Description))
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// HandleGetProject returns the board: project, rows with work items, members.
//
// HTTP: GET /api/projects/{id}
// A missing project answers 403, the same as one the caller may not see.
func (h *BoardHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	board, err := h.board.GetProject(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleUpdateProject changes name and/or description. Absent fields are kept.
//
// HTTP: PUT /api/projects/{id}
func (h *BoardHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	project, err := h.board.UpdateProject(r.Context(), caller, id, service.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleDeleteProject deletes the project and everything in it.
//
// HTTP: DELETE /api/projects/{id}
func (h *BoardHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	if err := h.board.DeleteProject(r.Context(), caller, id); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project deleted"})
}

// HandleAddMember shares the project with a registered user.
//
// HTTP: POST /api/projects/{id}/members
// REQUEST BODY: {"email": "bob@x.com"}
// RESPONSE: 201 with the full member list
func (h *BoardHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	members, err := h.board.AddMember(r.Context(), caller, id, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, members)
}

// HandleRemoveMember revokes a member's access.
//
// HTTP: DELETE /api/projects/{id}/members/{userId}
func (h *BoardHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	if err := h.board.RemoveMember(r.Context(), caller, id, userID); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Member removed"})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
