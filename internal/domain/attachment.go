package domain

import (
	"fmt"
	"time"
)

// Attachment is a visit recording (or other artifact) stored in object
// storage and linked to a note. The file itself never passes through the
// API server; clients upload and download via presigned URLs.
type Attachment struct {
	ID          string
	NoteID      string
	DoctorID    string
	Filename    string
	ContentType string
	StorageKey  string
	SizeBytes   int64
	CreatedAt   time.Time
}

// ValidateAttachment validates an Attachment instance
func ValidateAttachment(a *Attachment) error {
	if a == nil {
		return fmt.Errorf("attachment cannot be nil")
	}
	if a.ID == "" {
		return fmt.Errorf("attachment ID is required")
	}
	if a.NoteID == "" {
		return fmt.Errorf("attachment NoteID is required")
	}
	if a.DoctorID == "" {
		return fmt.Errorf("attachment DoctorID is required")
	}
	if a.Filename == "" {
		return fmt.Errorf("attachment Filename is required")
	}
	if a.StorageKey == "" {
		return fmt.Errorf("attachment StorageKey is required")
	}
	return nil
}
