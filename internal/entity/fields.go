package entity

import (
	"sort"

	"github.com/joseph-ayodele/idverify/constants"
)

// Span is a half-open byte range into the text a field was parsed from.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Field is a fully formed value. Absent fields are never stored.
type Field struct {
	Value      string               `json:"value"`
	Confidence float64              `json:"confidence"`
	Span       Span                 `json:"span"`
	Class      constants.MatchClass `json:"class"`
	Pattern    string               `json:"pattern,omitempty"`
}

// NameComponents is a best-effort split of the name field.
type NameComponents struct {
	First  string `json:"first_name,omitempty"`
	Middle string `json:"middle_name,omitempty"`
	Last   string `json:"last_name,omitempty"`
}

// FieldSet is the extracted field set for one document.
type FieldSet struct {
	Fields             map[constants.FieldKey]Field `json:"fields"`
	DocumentConfidence float64                      `json:"document_confidence"`
	Language           constants.Script             `json:"language"`
	Source             constants.ResultSource       `json:"source"`
	Components         *NameComponents              `json:"components,omitempty"`
	Extra              map[string]string            `json:"extra,omitempty"`
}

func NewFieldSet(lang constants.Script, src constants.ResultSource) FieldSet {
	return FieldSet{
		Fields:   make(map[constants.FieldKey]Field),
		Language: lang,
		Source:   src,
	}
}

// Set stores f only when it carries a value.
func (fs *FieldSet) Set(key constants.FieldKey, f Field) {
	if f.Value == "" {
		return
	}
	if fs.Fields == nil {
		fs.Fields = make(map[constants.FieldKey]Field)
	}
	fs.Fields[key] = f
}

func (fs FieldSet) Get(key constants.FieldKey) (Field, bool) {
	f, ok := fs.Fields[key]
	return f, ok
}

func (fs FieldSet) Value(key constants.FieldKey) string {
	return fs.Fields[key].Value
}

func (fs FieldSet) Empty() bool { return len(fs.Fields) == 0 }

// Keys returns present field keys in a stable order.
func (fs FieldSet) Keys() []constants.FieldKey {
	keys := make([]constants.FieldKey, 0, len(fs.Fields))
	for k := range fs.Fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Values flattens the set for the API and the verifier.
func (fs FieldSet) Values() map[string]string {
	out := make(map[string]string, len(fs.Fields))
	for k, f := range fs.Fields {
		out[string(k)] = f.Value
	}
	return out
}

func (fs FieldSet) Confidences() map[string]float64 {
	out := make(map[string]float64, len(fs.Fields))
	for k, f := range fs.Fields {
		out[string(k)] = f.Confidence
	}
	return out
}

// Clone returns a deep copy so reconciled output never aliases an input.
func (fs FieldSet) Clone() FieldSet {
	out := fs
	out.Fields = make(map[constants.FieldKey]Field, len(fs.Fields))
	for k, v := range fs.Fields {
		out.Fields[k] = v
	}
	if fs.Extra != nil {
		out.Extra = make(map[string]string, len(fs.Extra))
		for k, v := range fs.Extra {
			out.Extra[k] = v
		}
	}
	if fs.Components != nil {
		c := *fs.Components
		out.Components = &c
	}
	return out
}
