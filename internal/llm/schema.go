package llm

// BuildIdentityJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent with the prompt and used locally to validate the reply.
func BuildIdentityJSONSchema() map[string]any {
	props := map[string]any{
		"name":          textProp(),
		"age":           map[string]any{"type": "string", "pattern": `^\d{1,3}$`},
		"gender":        map[string]any{"type": "string", "enum": []string{"Male", "Female", "Other"}},
		"phone":         map[string]any{"type": "string", "pattern": `^\+?[\d\s\-().]{7,20}$`},
		"email":         map[string]any{"type": "string", "pattern": `^[^@\s]+@[^@\s]+\.[^@\s]+$`},
		"address":       textProp(),
		"address_line1": textProp(),
		"address_line2": textProp(),
		"city":          textProp(),
		"state":         textProp(),
		"country":       textProp(),
		"date_of_birth": map[string]any{"type": "string", "pattern": `^\d{2}/\d{2}/\d{4}$`},
		"pin_code":      map[string]any{"type": "string", "pattern": `^\d{4,6}$`},
		"aadhaar":       map[string]any{"type": "string", "pattern": `^\d{4}\s?\d{4}\s?\d{4}$`},
		"pan":           map[string]any{"type": "string", "pattern": `^[A-Z]{5}\d{4}[A-Z]$`},
		"passport":      map[string]any{"type": "string", "pattern": `^[A-Z0-9]{6,12}$`},
		"occupation":    textProp(),
		"parents_name":  textProp(),
		"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func textProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}
