package constants

import (
	"strings"
)

// FieldKey is a key in an extracted field set.
type FieldKey string

const (
	FieldName         FieldKey = "name"
	FieldAge          FieldKey = "age"
	FieldGender       FieldKey = "gender"
	FieldPhone        FieldKey = "phone"
	FieldEmail        FieldKey = "email"
	FieldAddress      FieldKey = "address"
	FieldAddressLine1 FieldKey = "address_line1"
	FieldAddressLine2 FieldKey = "address_line2"
	FieldCity         FieldKey = "city"
	FieldState        FieldKey = "state"
	FieldCountry      FieldKey = "country"
	FieldDateOfBirth  FieldKey = "date_of_birth"
	FieldPinCode      FieldKey = "pin_code"
	FieldAadhaar      FieldKey = "aadhaar"
	FieldPAN          FieldKey = "pan"
	FieldPassport     FieldKey = "passport"
	FieldOccupation   FieldKey = "occupation"
	FieldParentsName  FieldKey = "parents_name"
)

// ExtractionOrder is the order the extractor resolves fields in. Later fields may
// depend on earlier ones (pin_code excludes the phone digits).
var ExtractionOrder = []FieldKey{
	FieldName,
	FieldAge,
	FieldGender,
	FieldPhone,
	FieldEmail,
	FieldDateOfBirth,
	FieldAddress,
	FieldPinCode,
	FieldAadhaar,
	FieldPAN,
	FieldPassport,
	FieldOccupation,
	FieldParentsName,
}

// AddressParts are only filled from explicit sub-labels.
var AddressParts = []FieldKey{
	FieldAddressLine1,
	FieldAddressLine2,
	FieldCity,
	FieldState,
	FieldCountry,
}

func AllFields() []FieldKey {
	out := make([]FieldKey, 0, len(ExtractionOrder)+len(AddressParts))
	out = append(out, ExtractionOrder...)
	return append(out, AddressParts...)
}

func AsStringSlice() []string {
	all := AllFields()
	result := make([]string, len(all))
	for i, f := range all {
		result[i] = string(f)
	}
	return result
}

// Canonicalize maps loose client spellings of a field key onto the vocabulary.
// Unknown keys are returned snake-cased with ok=false so callers can still
// verify custom fields.
func Canonicalize(input string) (FieldKey, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	synonyms := map[string]FieldKey{
		"full_name":      FieldName,
		"applicant_name": FieldName,
		"sex":            FieldGender,
		"mobile":         FieldPhone,
		"phone_number":   FieldPhone,
		"mobile_number":  FieldPhone,
		"e_mail":         FieldEmail,
		"dob":            FieldDateOfBirth,
		"birth_date":     FieldDateOfBirth,
		"pincode":        FieldPinCode,
		"zip":            FieldPinCode,
		"postal_code":    FieldPinCode,
		"aadhar":         FieldAadhaar,
		"pan_number":     FieldPAN,
		"passport_no":    FieldPassport,
		"parent_name":    FieldParentsName,
		"address_1":      FieldAddressLine1,
		"address_2":      FieldAddressLine2,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}
	for _, f := range AllFields() {
		if normalized == string(f) {
			return f, true
		}
	}
	return FieldKey(normalized), false
}
