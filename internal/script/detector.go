// Package script infers the dominant writing system of recognized text.
package script

import (
	"unicode"

	"github.com/joseph-ayodele/idverify/constants"
)

// DefaultMinorityShare is the share above which a second block makes text mixed.
const DefaultMinorityShare = 0.15

// Shares is the per-block letter distribution of a text. Shares sum to 1 when
// Total > 0.
type Shares struct {
	Latin      float64
	Devanagari float64
	Arabic     float64
	Total      int
}

// Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	MinorityShare float64
}

func NewDetector(minorityShare float64) Detector {
	if minorityShare <= 0 || minorityShare >= 1 {
		minorityShare = DefaultMinorityShare
	}
	return Detector{MinorityShare: minorityShare}
}

// Detect uses the default minority share.
func Detect(text string) constants.Script {
	return NewDetector(DefaultMinorityShare).Detect(text)
}

// Detect returns en, hi, ar or mixed. Empty or symbol-only text is en.
func (d Detector) Detect(text string) constants.Script {
	sh := Count(text)
	if sh.Total == 0 {
		return constants.DefaultScript
	}

	minority := d.MinorityShare
	if minority <= 0 || minority >= 1 {
		minority = DefaultMinorityShare
	}

	shares := [...]struct {
		script constants.Script
		share  float64
	}{
		{constants.ScriptEnglish, sh.Latin},
		{constants.ScriptHindi, sh.Devanagari},
		{constants.ScriptArabic, sh.Arabic},
	}

	above := 0
	best := 0
	for i, s := range shares {
		if s.share > minority {
			above++
		}
		// strict comparison keeps the en, hi, ar order on ties
		if s.share > shares[best].share {
			best = i
		}
	}
	if above >= 2 {
		return constants.ScriptMixed
	}
	return shares[best].script
}

// Count tallies letters per block. Digits, punctuation and letters from other
// blocks are ignored.
func Count(text string) Shares {
	var latin, deva, arabic int
	for _, r := range text {
		switch {
		case isDevanagari(r):
			deva++
		case isArabic(r):
			arabic++
		case r < 0x2000 && unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	total := latin + deva + arabic
	if total == 0 {
		return Shares{}
	}
	t := float64(total)
	return Shares{
		Latin:      float64(latin) / t,
		Devanagari: float64(deva) / t,
		Arabic:     float64(arabic) / t,
		Total:      total,
	}
}

func isDevanagari(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}

func isArabic(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) ||
		(r >= 0x0750 && r <= 0x077F) ||
		(r >= 0x08A0 && r <= 0x08FF)
}
