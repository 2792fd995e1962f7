package entity

import (
	"time"

	"github.com/google/uuid"
)

// Mismatch is one field that scored under the mismatch threshold.
type Mismatch struct {
	Field     string  `json:"field"`
	Submitted string  `json:"submitted"`
	Extracted string  `json:"extracted"`
	Score     float64 `json:"match_score"`
}

// VerificationReport is created once per verification call.
type VerificationReport struct {
	Matches      map[string]float64 `json:"matches"`
	Mismatches   []Mismatch         `json:"mismatches"`
	OverallScore float64            `json:"overall_score"`
	Passed       bool               `json:"verification_passed"`
	Invalid      bool               `json:"invalid,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// ExtractionRecord is the persisted summary of one extraction (values only, never pages).
type ExtractionRecord struct {
	ID                 uuid.UUID          `json:"id"`
	Fields             map[string]string  `json:"fields"`
	FieldConfidences   map[string]float64 `json:"field_confidences"`
	DocumentConfidence float64            `json:"document_confidence"`
	Language           string             `json:"language_detected"`
	Source             string             `json:"source"`
	Engine             string             `json:"engine"`
	Pages              int                `json:"pages"`
	Warnings           []string           `json:"warnings,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// VerificationRecord is the persisted form of a report.
type VerificationRecord struct {
	ID           uuid.UUID          `json:"id"`
	ExtractionID *uuid.UUID         `json:"extraction_id,omitempty"`
	Report       VerificationReport `json:"report"`
	CreatedAt    time.Time          `json:"created_at"`
}
