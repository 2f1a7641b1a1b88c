package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/soapify-health/soapify/internal/api"
	"github.com/soapify-health/soapify/internal/api/middleware"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/service"
)

type AttachmentService interface {
	InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error)
	CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Attachment, error)
	GetDownloadURL(ctx context.Context, attachmentID, doctorID string) (string, error)
	ListByNote(ctx context.Context, noteID, doctorID string) ([]*domain.Attachment, error)
}

type AttachmentHandler struct {
	svc AttachmentService
}

func NewAttachmentHandler(svc AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

type InitUploadRequest struct {
	NoteID      string `json:"note_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	AttachmentID string `json:"attachment_id"`
	StorageKey   string `json:"storage_key"`
	UploadURL    string `json:"upload_url"`
}

type CompleteUploadRequest struct {
	AttachmentID string `json:"attachment_id"`
	NoteID       string `json:"note_id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	StorageKey   string `json:"storage_key"`
}

type AttachmentResponse struct {
	ID          string `json:"id"`
	NoteID      string `json:"note_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
}

func attachmentToResponse(a *domain.Attachment) *AttachmentResponse {
	return &AttachmentResponse{
		ID:          a.ID,
		NoteID:      a.NoteID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *AttachmentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NoteID == "" {
		api.Error(w, http.StatusBadRequest, "note_id is required")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	result, err := h.svc.InitUpload(r.Context(), service.InitUploadInput{
		DoctorID:    doctorID,
		NoteID:      req.NoteID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &InitUploadResponse{
		AttachmentID: result.AttachmentID,
		StorageKey:   result.StorageKey,
		UploadURL:    result.UploadURL,
	})
}

func (h *AttachmentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AttachmentID == "" {
		api.Error(w, http.StatusBadRequest, "attachment_id is required")
		return
	}
	if req.NoteID == "" {
		api.Error(w, http.StatusBadRequest, "note_id is required")
		return
	}
	if req.StorageKey == "" {
		api.Error(w, http.StatusBadRequest, "storage_key is required")
		return
	}

	attachment, err := h.svc.CompleteUpload(r.Context(), service.CompleteUploadInput{
		AttachmentID: req.AttachmentID,
		DoctorID:     doctorID,
		NoteID:       req.NoteID,
		Filename:     req.Filename,
		ContentType:  req.ContentType,
		StorageKey:   req.StorageKey,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, attachmentToResponse(attachment))
}

func (h *AttachmentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
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

	url, err := h.svc.GetDownloadURL(r.Context(), id, doctorID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &DownloadURLResponse{DownloadURL: url})
}

func (h *AttachmentHandler) ListByNote(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	noteID := chi.URLParam(r, "id")
	if noteID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	attachments, err := h.svc.ListByNote(r.Context(), noteID, doctorID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		items = append(items, attachmentToResponse(a))
	}

	api.Success(w, http.StatusOK, items)
}
