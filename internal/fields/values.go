package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// value expressions appended to an anchor; group 1 is the raw value
const (
	exprText    = `([^\n:：]{1,120})`
	exprLine    = `([^\n]*)`
	exprAge     = `(\d{1,3})(?:[^\d]|$)`
	exprWord    = `([\pL\pM.]{1,12})`
	exprPhone   = `(\+?\d[\d \-.()]{5,20}\d)`
	exprEmail   = `([A-Za-z0-9._%+\-]+(?:[ \t]*@[ \t]*)[A-Za-z0-9.\-]+[ \t]*\.[ \t]*[A-Za-z]{2,})`
	exprDate    = `(\d{1,2}[ \t]*[/.\-lI|][ \t]*\d{1,2}[ \t]*[/.\-lI|][ \t]*\d{2,4})`
	exprDigits  = `(\d[\d ]{2,14}\d)`
	exprIDToken = `([A-Za-z0-9]{6,12})`
)

func valueExpr(field constants.FieldKey) string {
	switch field {
	case constants.FieldAge:
		return exprAge
	case constants.FieldGender:
		return exprWord
	case constants.FieldPhone:
		return exprPhone
	case constants.FieldEmail:
		return exprEmail
	case constants.FieldDateOfBirth:
		return exprDate
	case constants.FieldAddress:
		return exprLine
	case constants.FieldPinCode, constants.FieldAadhaar:
		return exprDigits
	case constants.FieldPAN, constants.FieldPassport:
		return exprIDToken
	default:
		return exprText
	}
}

// normalizer turns a raw capture into the stored value. ok=false rejects the
// candidate and lets the extractor keep searching.
type normalizer func(raw string, fs *entity.FieldSet) (string, bool)

var normalizers = map[constants.FieldKey]normalizer{
	constants.FieldName:         func(raw string, _ *entity.FieldSet) (string, bool) { return normalizePersonName(raw) },
	constants.FieldParentsName:  func(raw string, _ *entity.FieldSet) (string, bool) { return normalizePersonName(raw) },
	constants.FieldAge:          func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizeAge(raw) },
	constants.FieldGender:       func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizeGender(raw) },
	constants.FieldPhone:        func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizePhone(raw) },
	constants.FieldEmail:        func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizeEmail(raw) },
	constants.FieldDateOfBirth:  func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizeDate(raw) },
	constants.FieldPinCode:      normalizePin,
	constants.FieldAadhaar:      func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizeAadhaar(raw) },
	constants.FieldPAN:          func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizePAN(raw) },
	constants.FieldPassport:     func(raw string, _ *entity.FieldSet) (string, bool) { return NormalizePassport(raw) },
	constants.FieldOccupation:   func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
	constants.FieldAddressLine1: func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
	constants.FieldAddressLine2: func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
	constants.FieldCity:         func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
	constants.FieldState:        func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
	constants.FieldCountry:      func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) },
}

// NormalizeValue applies the field's normalizer to a value that did not come
// from pattern matching, such as secondary-extractor output.
func NormalizeValue(field constants.FieldKey, raw string) (string, bool) {
	return normalizerFor(field)(raw, nil)
}

func normalizerFor(field constants.FieldKey) normalizer {
	if n, ok := normalizers[field]; ok {
		return n
	}
	return func(raw string, _ *entity.FieldSet) (string, bool) { return normalizeText(raw) }
}

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reInitialDot  = regexp.MustCompile(`(\pL)\.(\pL)`)
	reNameJunk    = regexp.MustCompile(`[^\pL\pM .'\-]`)
	reEdgePunct   = regexp.MustCompile(`^[\s.,;'\-]+|[\s,;'\-]+$`)
	rePhoneSep    = regexp.MustCompile(`[\s\-.()]`)
	reEmailStrict = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	reDateSep     = regexp.MustCompile(`[/.\-lI|]`)
	rePAN         = regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]$`)
	rePassport    = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)
)

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// normalizePersonName drops digits and stray symbols, spaces out initials and
// rejects values with fewer than two letters.
func normalizePersonName(raw string) (string, bool) {
	s := reNameJunk.ReplaceAllString(raw, " ")
	s = reInitialDot.ReplaceAllString(s, "$1. $2")
	s = collapse(s)
	s = reEdgePunct.ReplaceAllString(s, "")
	if letterCount(s) < 2 {
		return "", false
	}
	if len(strings.Fields(s)) > 6 {
		return "", false
	}
	return s, true
}

func normalizeText(raw string) (string, bool) {
	s := collapse(raw)
	s = reEdgePunct.ReplaceAllString(s, "")
	if letterCount(s) < 2 {
		return "", false
	}
	return s, true
}

// NormalizeAge accepts 1..150.
func NormalizeAge(raw string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > 150 {
		return "", false
	}
	return strconv.Itoa(n), true
}

var genderValues = map[string]string{
	"m":      "Male",
	"male":   "Male",
	"f":      "Female",
	"female": "Female",
	"other":  "Other",
	"o":      "Other",
	"पुरुष":  "Male",
	"महिला":  "Female",
	"स्त्री": "Female",
	"अन्य":   "Other",
	"ذكر":    "Male",
	"أنثى":   "Female",
	"انثى":   "Female",
	"آخر":    "Other",
}

// NormalizeGender maps m/male, f/female and other (plus hi/ar words) to Male, Female, Other.
func NormalizeGender(raw string) (string, bool) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(raw), "."))
	v, ok := genderValues[s]
	return v, ok
}

// NormalizePhone strips separators and accepts 7..15 digits with an optional leading +.
func NormalizePhone(raw string) (string, bool) {
	s := rePhoneSep.ReplaceAllString(strings.TrimSpace(raw), "")
	plus := strings.HasPrefix(s, "+")
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

func NormalizeEmail(raw string) (string, bool) {
	s := strings.ToLower(reSpaces.ReplaceAllString(raw, ""))
	s = strings.Trim(s, ".")
	if !reEmailStrict.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeDate returns DD/MM/YYYY. Two-digit years below 50 are 20xx, the rest
// 19xx. When the first part cannot be a day-of-month but the second can, the
// input is read as MM/DD.
func NormalizeDate(raw string) (string, bool) {
	s := reSpaces.ReplaceAllString(raw, "")
	parts := reDateSep.Split(s, -1)
	if len(parts) != 3 {
		return "", false
	}
	d, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if len(parts[2]) == 2 {
		if y < 50 {
			y += 2000
		} else {
			y += 1900
		}
	}
	if m > 12 && d <= 12 {
		d, m = m, d
	}
	if y < 1900 || y > 2100 || m < 1 || m > 12 || d < 1 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", d, m, y), true
}

// normalizePin accepts 4..6 digits that are not part of the phone number.
func normalizePin(raw string, fs *entity.FieldSet) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if len(s) < 4 || len(s) > 6 {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if fs != nil {
		if phone := fs.Value(constants.FieldPhone); phone != "" && strings.Contains(phone, s) {
			return "", false
		}
	}
	return s, true
}

// NormalizeAadhaar accepts 12 digits and formats them as XXXX XXXX XXXX.
func NormalizeAadhaar(raw string) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if len(s) != 12 {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s[:4] + " " + s[4:8] + " " + s[8:], true
}

func NormalizePAN(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !rePAN.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizePassport accepts 6..12 alphanumerics with at least one digit.
func NormalizePassport(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !rePassport.MatchString(s) || !strings.ContainsAny(s, "0123456789") {
		return "", false
	}
	return s, true
}
