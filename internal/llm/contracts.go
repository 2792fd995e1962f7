package llm

import (
	"context"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// IdentityFields is the normalized shape we want from the LLM. Absent fields
// are omitted, never null.
type IdentityFields struct {
	Name            string  `json:"name,omitempty"`
	Age             string  `json:"age,omitempty"`
	Gender          string  `json:"gender,omitempty"` // Male | Female | Other
	Phone           string  `json:"phone,omitempty"`
	Email           string  `json:"email,omitempty"`
	Address         string  `json:"address,omitempty"`
	AddressLine1    string  `json:"address_line1,omitempty"`
	AddressLine2    string  `json:"address_line2,omitempty"`
	City            string  `json:"city,omitempty"`
	State           string  `json:"state,omitempty"`
	Country         string  `json:"country,omitempty"`
	DateOfBirth     string  `json:"date_of_birth,omitempty"` // DD/MM/YYYY
	PinCode         string  `json:"pin_code,omitempty"`
	Aadhaar         string  `json:"aadhaar,omitempty"`
	PAN             string  `json:"pan,omitempty"`
	Passport        string  `json:"passport,omitempty"`
	Occupation      string  `json:"occupation,omitempty"`
	ParentsName     string  `json:"parents_name,omitempty"`
	ModelConfidence float64 `json:"confidence,omitempty"` // optional (0..1)
}

// Values lists the non-empty fields by key.
func (f IdentityFields) Values() map[constants.FieldKey]string {
	all := map[constants.FieldKey]string{
		constants.FieldName:         f.Name,
		constants.FieldAge:          f.Age,
		constants.FieldGender:       f.Gender,
		constants.FieldPhone:        f.Phone,
		constants.FieldEmail:        f.Email,
		constants.FieldAddress:      f.Address,
		constants.FieldAddressLine1: f.AddressLine1,
		constants.FieldAddressLine2: f.AddressLine2,
		constants.FieldCity:         f.City,
		constants.FieldState:        f.State,
		constants.FieldCountry:      f.Country,
		constants.FieldDateOfBirth:  f.DateOfBirth,
		constants.FieldPinCode:      f.PinCode,
		constants.FieldAadhaar:      f.Aadhaar,
		constants.FieldPAN:          f.PAN,
		constants.FieldPassport:     f.Passport,
		constants.FieldOccupation:   f.Occupation,
		constants.FieldParentsName:  f.ParentsName,
	}
	for k, v := range all {
		if v == "" {
			delete(all, k)
		}
	}
	return all
}

type ExtractRequest struct {
	Text     string
	Language constants.Script
}

// FieldExtractor is the secondary extraction source the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.FieldSet, []byte /*rawJSON*/, error)
}
