package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zombor/kakeibo/internal/dashboard"
	"github.com/zombor/kakeibo/internal/logger"
	"github.com/zombor/kakeibo/internal/money"
	"github.com/zombor/kakeibo/internal/scanning"
)

const maxJSONBody = 1 << 20

var errEmptyBody = fmt.Errorf("%w: request body is empty", ErrValidation)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError maps service errors onto HTTP status codes. Anything unexpected
// is logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, dashboard.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrValidation),
		errors.Is(err, dashboard.ErrInvalidRange),
		errors.Is(err, money.ErrNotANumber):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	return nil
}

func itemIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: item index %q", ErrValidation, raw)
	}
	return i, nil
}

// handleScan analyzes one or more uploaded receipt images
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request, owner string) {
	uploads, err := readUploads(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := s.service.AnalyzeBatch(r.Context(), owner, uploads, func(done, total int) {
		logger.Log.Debug().Int("done", done).Int("total", total).Msg("Scan progress")
	})
	writeJSON(w, http.StatusOK, result)
}

// handleNewDraft opens a manual draft. A body, if any, pre-fills the form.
func (s *Server) handleNewDraft(w http.ResponseWriter, r *http.Request, owner string) {
	var seed *Record
	var patch DraftPatch
	switch err := decodeBody(w, r, &patch); {
	case errors.Is(err, errEmptyBody):
	case err != nil:
		writeError(w, r, err)
		return
	default:
		seed = &Record{}
		prefill := &Draft{State: StateEditing, Record: seed}
		if err := prefill.Apply(patch); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.service.NewManualDraft(owner, seed))
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request, owner string) {
	writeJSON(w, http.StatusOK, s.service.ListDrafts(owner))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request, owner string) {
	d, err := s.service.GetDraft(owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDraftImage serves the uploaded image of a scanned draft
func (s *Server) handleDraftImage(w http.ResponseWriter, r *http.Request, owner string) {
	data, contentType, err := s.service.DraftImage(owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request, owner string) {
	d, err := s.service.BeginEdit(owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request, owner string) {
	var patch DraftPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.service.UpdateDraft(owner, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, owner string) {
	var in ItemInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.service.AddItem(owner, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, owner string) {
	index, err := itemIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch ItemPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.service.UpdateItem(owner, r.PathValue("id"), index, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request, owner string) {
	index, err := itemIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.service.RemoveItem(owner, r.PathValue("id"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleCancelDraft reverts a draft. Drafts that leave the working set answer
// with 204.
func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request, owner string) {
	d, err := s.service.CancelDraft(owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request, owner string) {
	record, err := s.service.SaveDraft(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.service.DiscardDraft(owner, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scanning.DefaultCategories)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
