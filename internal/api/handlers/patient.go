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

type PatientService interface {
	CreatePatient(ctx context.Context, input service.CreatePatientInput) (*domain.Patient, error)
	ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error)
	GetHistory(ctx context.Context, doctorID, patientID string) (domain.RetrievalResult, error)
}

type PatientHandler struct {
	svc PatientService
}

func NewPatientHandler(svc PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type CreatePatientRequest struct {
	Name   string `json:"name"`
	Age    int32  `json:"age"`
	Gender string `json:"gender"`
}

type PatientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Age       int32  `json:"age"`
	Gender    string `json:"gender,omitempty"`
	CreatedAt string `json:"created_at"`
}

type HistoryEntryResponse struct {
	NoteID     string `json:"note_id"`
	SoapNumber int64  `json:"soap_number"`
	Date       string `json:"date"`
	Content    string `json:"content"`
}

func patientToResponse(p *domain.Patient) *PatientResponse {
	return &PatientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Age:       p.Age,
		Gender:    p.Gender,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	patient, err := h.svc.CreatePatient(r.Context(), service.CreatePatientInput{
		DoctorID: doctorID,
		Name:     req.Name,
		Age:      req.Age,
		Gender:   req.Gender,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, patientToResponse(patient))
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetDoctorID(r.Context())
	if doctorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	patients, err := h.svc.ListPatients(r.Context(), doctorID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*PatientResponse, 0, len(patients))
	for _, p := range patients {
		items = append(items, patientToResponse(p))
	}

	api.Success(w, http.StatusOK, items)
}

// History returns the patient's completed notes, most recent visit first.
func (h *PatientHandler) History(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.svc.GetHistory(r.Context(), doctorID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*HistoryEntryResponse, 0, len(history))
	for _, entry := range history {
		items = append(items, &HistoryEntryResponse{
			NoteID:     entry.NoteID,
			SoapNumber: entry.SoapNumber,
			Date:       entry.Date.Format("2006-01-02T15:04:05Z"),
			Content:    entry.Content,
		})
	}

	api.Success(w, http.StatusOK, items)
}
