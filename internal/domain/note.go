package domain

import (
	"fmt"
	"time"
)

// NoteStatus represents the lifecycle state of a SOAP note
type NoteStatus string

const (
	NoteStatusProcessing NoteStatus = "PROCESSING"
	NoteStatusCompleted  NoteStatus = "COMPLETED"
	NoteStatusFailed     NoteStatus = "FAILED"
)

// IsTerminal reports whether no further status transition may occur.
func (s NoteStatus) IsTerminal() bool {
	return s == NoteStatusCompleted || s == NoteStatusFailed
}

// Note represents one generated SOAP note for a (doctor, patient) visit.
// Status moves PROCESSING -> {COMPLETED|FAILED} exactly once; Content stays
// nil until a terminal state and is only ever set on COMPLETED.
type Note struct {
	ID            string
	DoctorID      string
	PatientID     string
	SoapNumber    int64
	Transcript    string
	Status        NoteStatus
	Content       *string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewNote creates a Note in the PROCESSING state.
func NewNote(id, doctorID, patientID, transcript string, createdAt time.Time) *Note {
	return &Note{
		ID:         id,
		DoctorID:   doctorID,
		PatientID:  patientID,
		Transcript: transcript,
		Status:     NoteStatusProcessing,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// ValidateNote validates a Note instance
func ValidateNote(n *Note) error {
	if n == nil {
		return fmt.Errorf("note cannot be nil")
	}
	if n.ID == "" {
		return fmt.Errorf("note ID is required")
	}
	if n.DoctorID == "" {
		return fmt.Errorf("note DoctorID is required")
	}
	if n.PatientID == "" {
		return fmt.Errorf("note PatientID is required")
	}
	if n.Transcript == "" {
		return fmt.Errorf("note Transcript is required")
	}
	if !isValidNoteStatus(n.Status) {
		return fmt.Errorf("note Status is invalid: %s", n.Status)
	}
	return nil
}

// CanTransition reports whether the status machine allows moving to next.
func (n *Note) CanTransition(next NoteStatus) bool {
	if n.Status != NoteStatusProcessing {
		return false
	}
	return next == NoteStatusCompleted || next == NoteStatusFailed
}

func isValidNoteStatus(s NoteStatus) bool {
	switch s {
	case NoteStatusProcessing, NoteStatusCompleted, NoteStatusFailed:
		return true
	}
	return false
}
