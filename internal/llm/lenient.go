package llm

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/joseph-ayodele/idverify/internal/common"
)

var genderAliases = map[string]string{
	"m": "Male", "male": "Male", "man": "Male",
	"f": "Female", "female": "Female", "woman": "Female",
	"o": "Other", "other": "Other", "transgender": "Other",
}

// SanitizeOptionalFields repairs or drops the fields that fail their own
// schema property, so the rest of the document can still validate. Every
// identity field is optional, so dropping one never invalidates the reply.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	// cheap repairs first
	if v, ok := m["gender"].(string); ok {
		if g, ok := genderAliases[strings.ToLower(strings.TrimSpace(v))]; ok {
			m["gender"] = g
		}
	}
	for _, k := range []string{"pan", "passport"} {
		if v, ok := m[k].(string); ok {
			m[k] = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
		}
	}

	props, _ := BuildIdentityJSONSchema()["properties"].(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dropped []string
	for _, k := range keys {
		prop, ok := props[k]
		if !ok {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		one := map[string]any{
			"type":       "object",
			"properties": map[string]any{k: prop},
		}
		b, err := json.Marshal(map[string]any{k: m[k]})
		if err != nil {
			return nil, nil, err
		}
		if common.ValidateJSONAgainstSchema(one, b) != nil {
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
