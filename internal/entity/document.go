package entity

import (
	"github.com/google/uuid"
)

// RawPage is one uploaded page. Data is never persisted.
type RawPage struct {
	Filename string
	MimeType string
	Data     []byte
}

// RawDocument is the immutable input to one extraction.
type RawDocument struct {
	ID    uuid.UUID
	Pages []RawPage
}

// NewRawDocument assigns a fresh ID.
func NewRawDocument(pages ...RawPage) RawDocument {
	return RawDocument{ID: uuid.New(), Pages: pages}
}
