package pipeline

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/internal/conditioner"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/script"
)

// ExtractResponse is what callers of Extract receive.
type ExtractResponse struct {
	DocumentID         uuid.UUID              `json:"document_id"`
	Fields             map[string]string      `json:"fields"`
	FieldConfidences   map[string]float64     `json:"field_confidences"`
	DocumentConfidence float64                `json:"document_confidence"`
	LanguageDetected   string                 `json:"language_detected"`
	Source             string                 `json:"source"`
	RawText            string                 `json:"raw_text"`
	Extra              map[string]string      `json:"extra_fields,omitempty"`
	Components         *entity.NameComponents `json:"name_components,omitempty"`
	Warnings           []string               `json:"warnings,omitempty"`
	Debug              *DebugInfo             `json:"debug,omitempty"`
}

// DebugInfo is a side channel for tuning. It carries no functional contract.
type DebugInfo struct {
	Engine             string        `json:"engine"`
	Shares             script.Shares `json:"script_shares"`
	PrimaryConfidence  float64       `json:"primary_confidence"`
	SecondaryAttempted bool          `json:"secondary_attempted"`
	Pages              []PageDebug   `json:"pages"`
}

type PageDebug struct {
	Index     int                        `json:"index"`
	Languages string                     `json:"languages"`
	Refined   bool                       `json:"refined"`
	Stages    []conditioner.StageOutcome `json:"stages"`
	Frames    []Frame                    `json:"frames,omitempty"`
}

// Frame is one stage output, PNG encoded (base64 in JSON).
type Frame struct {
	Stage string `json:"stage"`
	PNG   []byte `json:"png"`
}
