package constants

// Script is the dominant writing system of a recognized text.
type Script string

// Stable values (returned over the API as language_detected).
const (
	ScriptEnglish Script = "en"
	ScriptHindi   Script = "hi"
	ScriptArabic  Script = "ar"
	ScriptMixed   Script = "mixed"
)

// DefaultScript is returned for empty or symbol-only text.
const DefaultScript = ScriptEnglish

// PackScripts are the scripts that carry a pattern pack, in lookup order for mixed text.
var PackScripts = []Script{ScriptEnglish, ScriptHindi, ScriptArabic}

// TesseractLang maps a script to tesseract traineddata names.
func (s Script) TesseractLang() string {
	switch s {
	case ScriptHindi:
		return "hin+eng"
	case ScriptArabic:
		return "ara+eng"
	case ScriptMixed:
		return "eng+hin+ara"
	default:
		return "eng"
	}
}

// MatchClass records how a field value was found.
type MatchClass string

const (
	MatchAnchor    MatchClass = "anchor"    // labeled keyword
	MatchHeuristic MatchClass = "heuristic" // unlabeled fallback
	MatchModel     MatchClass = "model"     // secondary extractor output
)

// ResultSource is the provenance of a field set.
type ResultSource string

const (
	SourcePattern ResultSource = "pattern"
	SourceLLM     ResultSource = "llm"
)

// Warnings surfaced in extraction responses.
const (
	WarnConditioningDegraded = "conditioning_degraded"
	WarnNoFieldsExtracted    = "no_fields_extracted"
	WarnSecondaryFailed      = "secondary_extraction_failed"
	WarnNotStored            = "result_not_stored"
)
