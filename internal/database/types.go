package database

import (
	"time"
)

// PersonMetadata is the descriptive part of a missing person record.
type PersonMetadata struct {
	Name        string
	AgeLabel    string // free text, e.g. "34" or "about 30"
	Description string
	DateMissing string
	Contact     string
	PhotoPath   string // path of the stored reference photo, relative to the upload directory
}

// PersonRecord represents a missing person stored in the database
type PersonRecord struct {
	ID int64
	PersonMetadata
	Embedding []float32
	Model     string // embedding model that produced Embedding
	Dim       int
	CreatedAt time.Time
}

// Encoding is the part of a record the match engine scans.
type Encoding struct {
	PersonID  int64
	Embedding []float32
	Model     string
}

// ListOptions filters and pages List results.
type ListOptions struct {
	Name   string // diacritic-insensitive substring of the person name
	Limit  int    // 0 means no limit
	Offset int
}

// Encoding returns the scan view of the record.
func (r *PersonRecord) Encoding() Encoding {
	return Encoding{PersonID: r.ID, Embedding: r.Embedding, Model: r.Model}
}
