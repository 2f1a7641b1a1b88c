package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/soapify-health/soapify/internal/api"
	"github.com/soapify-health/soapify/internal/api/middleware"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/service"
)

type NoteService interface {
	Submit(ctx context.Context, input service.SubmitInput) (*domain.Note, error)
	GetStatus(ctx context.Context, noteID, doctorID string) (*domain.Note, error)
	List(ctx context.Context, input service.ListNotesInput) (*service.NotePageResult, error)
	UpdateContent(ctx context.Context, noteID, doctorID, content string) (*domain.Note, error)
}

type NoteHandler struct {
	svc NoteService
}

func NewNoteHandler(svc NoteService) *NoteHandler {
	return &NoteHandler{svc: svc}
}

type SubmitNoteRequest struct {
	PatientID  string `json:"patient_id"`
	Transcript string `json:"transcript"`
}

type UpdateNoteRequest struct {
	Content string `json:"content"`
}

type NoteResponse struct {
	ID            string  `json:"id"`
	PatientID     string  `json:"patient_id"`
	SoapNumber    int64   `json:"soap_number"`
	Status        string  `json:"status"`
	Content       *string `json:"content"`
	FailureReason string  `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type NoteListResponse struct {
	Items      []*NoteResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func noteToResponse(n *domain.Note) *NoteResponse {
	return &NoteResponse{
		ID:            n.ID,
		PatientID:     n.PatientID,
		SoapNumber:    n.SoapNumber,
		Status:        string(n.Status),
		Content:       n.Content,
		FailureReason: n.FailureReason,
		CreatedAt:     n.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:     n.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Submit accepts a transcript and returns 202 with the PROCESSING note. The
// client polls Get until the note reaches COMPLETED or FAILED.
func (h *NoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PatientID == "" {
		api.Error(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	note, err := h.svc.Submit(r.Context(), service.SubmitInput{
		DoctorID:   doctorID,
		PatientID:  req.PatientID,
		Transcript: req.Transcript,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, noteToResponse(note))
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	note, err := h.svc.GetStatus(r.Context(), id, doctorID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, noteToResponse(note))
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 20
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), service.ListNotesInput{
		DoctorID: doctorID,
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*NoteResponse, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, noteToResponse(n))
	}

	api.Success(w, http.StatusOK, &NoteListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// Update overwrites the content of a terminal note with a human edit.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.svc.UpdateContent(r.Context(), id, doctorID, req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, noteToResponse(note))
}
