package handler

import (
	"net/http"
)

type rowRequest struct {
	Name string `json:"name"`
}

// HandleCreateRow adds a row to a project.
//
// HTTP: POST /api/projects/{id}/rows
// REQUEST BODY: {"name": "Todo"}
func (h *BoardHandler) HandleCreateRow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req rowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	row, err := h.board.CreateRow(r.Context(), caller, projectID, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// HandleGetRow returns a row with its project.
//
// HTTP: GET /api/rows/{id}
func (h *BoardHandler) HandleGetRow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	row, err := h.board.GetRow(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// HandleUpdateRow renames a row.
//
// HTTP: PUT /api/rows/{id}
// REQUEST BODY: {"name": "Doing"}
func (h *BoardHandler) HandleUpdateRow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req rowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	row, err := h.board.RenameRow(r.Context(), caller, id, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// HandleDeleteRow deletes a row and its work items.
//
// HTTP: DELETE /api/rows/{id}
func (h *BoardHandler) HandleDeleteRow(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	if err := h.board.DeleteRow(r.Context(), caller, id); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Row deleted"})
}
