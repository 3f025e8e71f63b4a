package handler

import (
	"errors"
	"net/http"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/service"
)

// uploadMemory is how much of a multipart upload is held in memory before
// the rest spills to a temporary file.
const uploadMemory = 8 << 20

type workItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	RowID       *flexID `json:"rowId"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// HandleCreateWorkItem adds a work item to a row.
//
// HTTP: POST /api/rows/{id}/work-items
// REQUEST BODY: {"title": "Write docs", "description": "..."}
func (h *BoardHandler) HandleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	rowID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req workItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	item, err := h.board.CreateWorkItem(r.Context(), caller, rowID, deref(req.Title), deref(req.Description))
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleGetWorkItem returns a work item with its files and comments.
//
// HTTP: GET /api/work-items/{id}
func (h *BoardHandler) HandleGetWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	details, err := h.board.GetWorkItem(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// HandleUpdateWorkItem edits a work item and/or moves it to another row.
//
// HTTP: PUT /api/work-items/{id}
// REQUEST BODY: {"title": "...", "description": "...", "rowId": 2}
// Every field is optional. rowId may be a number or a numeric string.
func (h *BoardHandler) HandleUpdateWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req workItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	upd := service.WorkItemUpdate{Title: req.Title, Description: req.Description}
	if req.RowID != nil {
		rowID := int64(*req.RowID)
		upd.RowID = &rowID
	}

	item, err := h.board.UpdateWorkItem(r.Context(), caller, id, upd)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleDeleteWorkItem deletes a work item with its comments and files.
//
// HTTP: DELETE /api/work-items/{id}
func (h *BoardHandler) HandleDeleteWorkItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	if err := h.board.DeleteWorkItem(r.Context(), caller, id); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Work item and associated data deleted"})
}

// HandleAddComment comments on a work item as the caller.
//
// HTTP: POST /api/work-items/{id}/comments
// REQUEST BODY: {"content": "Looks good"}
func (h *BoardHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	comment, err := h.board.AddComment(r.Context(), caller, id, req.Content)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleUploadFile attaches a multipart upload to a work item.
//
// HTTP: POST /api/work-items/{id}/files
// BODY: multipart/form-data with the file in the "file" field
//
// The whole request body is capped at maxUploadBytes with
// http.MaxBytesReader; a larger upload is rejected with 400.
func (h *BoardHandler) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, apperror.ValidationFailed("file", "file is too large"), http.StatusBadRequest)
			return
		}
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "Failed to upload file"), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("file", "file is required"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	record, err := h.board.AttachFile(r.Context(), caller, id, header.Filename, file)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
