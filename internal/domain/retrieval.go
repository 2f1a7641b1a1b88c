package domain

import "time"

// RetrievedNote is one prior COMPLETED note returned by the retrieval scope,
// ranked by similarity to the new transcript.
type RetrievedNote struct {
	NoteID     string
	SoapNumber int64
	Date       time.Time
	Content    string
	Score      float64
}

// RetrievalResult is the ordered, ephemeral output of a retrieval call.
// It is never persisted.
type RetrievalResult []RetrievedNote

// NoteEmbedding is the stored vector for one COMPLETED note. Records are
// written once by the pipeline and only ever read by retrieval.
type NoteEmbedding struct {
	NoteID     string
	DoctorID   string
	PatientID  string
	SoapNumber int64
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}
