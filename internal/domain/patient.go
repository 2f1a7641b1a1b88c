package domain

import (
	"fmt"
	"time"
)

// Patient is a doctor-scoped patient record. Two doctors never share a
// patient row even when treating the same person.
type Patient struct {
	ID        string
	DoctorID  string
	Name      string
	Age       int32
	Gender    string
	CreatedAt time.Time
}

// Doctor is the authenticated owner of patients and notes. The API token
// hash backs the Bearer auth middleware; the service never sees the raw token
// after creation.
type Doctor struct {
	ID           string
	Email        string
	FullName     string
	APITokenHash string
	CreatedAt    time.Time
}

// ValidatePatient validates a Patient instance
func ValidatePatient(p *Patient) error {
	if p == nil {
		return fmt.Errorf("patient cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("patient ID is required")
	}
	if p.DoctorID == "" {
		return fmt.Errorf("patient DoctorID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("patient Name is required")
	}
	if p.Age < 0 {
		return fmt.Errorf("patient Age cannot be negative")
	}
	return nil
}
