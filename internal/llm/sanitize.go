package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
)

// NormalizeAndSanitizeJSON
// - Renames loose key spellings onto the field vocabulary (dob -> date_of_birth)
// - Drops null/empty values
// - Coerces numbers to strings for text fields and strings to numbers for confidence
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	out := make(map[string]any, len(m))

	for k, v := range maps.Clone(m) {
		if k == "confidence" {
			if c, ok := coerceConfidence(v); ok {
				out[k] = c
			} else {
				dropped = append(dropped, k+"(type)")
			}
			continue
		}

		key, known := constants.Canonicalize(k)
		if !known {
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		if string(key) != k {
			if _, exists := m[string(key)]; exists {
				// the canonical spelling wins
				dropped = append(dropped, k+"(duplicate)")
				continue
			}
			dropped = append(dropped, k+"->"+string(key))
		}

		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				dropped = append(dropped, string(key)+"(empty)")
				continue
			}
			out[string(key)] = s
		case float64:
			out[string(key)] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			dropped = append(dropped, string(key)+"(null)")
		default:
			dropped = append(dropped, string(key)+"(type)")
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return b, dropped, nil
}

func coerceConfidence(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "%")), 64)
		if err != nil {
			return 0, false
		}
		if strings.HasSuffix(strings.TrimSpace(t), "%") {
			p /= 100
		}
		f = p
	default:
		return 0, false
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
