package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/idverify/constants"
)

const maxPromptText = 3000

var languageNames = map[constants.Script]string{
	constants.ScriptEnglish: "English",
	constants.ScriptHindi:   "Hindi (Devanagari)",
	constants.ScriptArabic:  "Arabic",
	constants.ScriptMixed:   "mixed English, Hindi and Arabic",
}

// BuildSystemPrompt composes the system message with the field vocabulary and
// formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	lang := languageNames[req.Language]
	if lang == "" {
		lang = languageNames[constants.DefaultScript]
	}
	parts := []string{
		"You are an identity document parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The document text was recognized by OCR and is written in " + lang + ". It may contain recognition errors.",
		"Allowed keys: " + strings.Join(constants.AsStringSlice(), ", ") + ", confidence.",
		"Copy values as printed; transliterate nothing.",
		"gender must be one of Male, Female, Other.",
		"date_of_birth must be DD/MM/YYYY.",
		"age is a whole number of years.",
		"Only fill address_line1, address_line2, city, state and country when the document labels them explicitly.",
		"Set 'confidence' to your overall certainty between 0 and 1.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the recognized text, truncated on a rune boundary.
func BuildUserPrompt(req ExtractRequest) string {
	text := strings.TrimSpace(req.Text)
	var b strings.Builder
	b.WriteString("OCR text (first ~3k chars):\n")
	if len(text) > maxPromptText {
		cut := maxPromptText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		b.WriteString(text[:cut])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}
