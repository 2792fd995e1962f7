package verify

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

const (
	DefaultMismatchThreshold = 0.8
	DefaultPassThreshold     = 0.85

	reasonNoFields = "no fields submitted or extracted"
)

// Verifier compares submitted values with extracted ones. It does no I/O and
// is safe for concurrent use.
type Verifier struct {
	cfg common.VerifyConfig
	lev *metrics.Levenshtein
}

func New(cfg common.VerifyConfig) *Verifier {
	if cfg.MismatchThreshold <= 0 {
		cfg.MismatchThreshold = DefaultMismatchThreshold
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	return &Verifier{cfg: cfg, lev: metrics.NewLevenshtein()}
}

// Verify scores every field named in either map, in sorted key order.
func (v *Verifier) Verify(submitted, extracted map[string]string) entity.VerificationReport {
	if len(submitted) == 0 && len(extracted) == 0 {
		return entity.VerificationReport{
			Matches:    map[string]float64{},
			Mismatches: []entity.Mismatch{},
			Invalid:    true,
			Reason:     reasonNoFields,
		}
	}

	keys := unionKeys(submitted, extracted)
	report := entity.VerificationReport{
		Matches:    make(map[string]float64, len(keys)),
		Mismatches: []entity.Mismatch{},
	}

	var total float64
	for _, k := range keys {
		s, e := submitted[k], extracted[k]
		score := v.Similarity(s, e)
		report.Matches[k] = score
		total += score
		if score < v.cfg.MismatchThreshold {
			report.Mismatches = append(report.Mismatches, entity.Mismatch{
				Field:     k,
				Submitted: s,
				Extracted: e,
				Score:     score,
			})
		}
	}

	report.OverallScore = total / float64(len(keys))
	report.Passed = report.OverallScore >= v.cfg.PassThreshold && len(report.Mismatches) == 0
	return report
}

// Similarity is the Levenshtein ratio of the normalized values. Both empty
// scores 1, exactly one empty scores 0.
func (v *Verifier) Similarity(a, b string) float64 {
	a, b = v.normalize(a), v.normalize(b)
	switch {
	case a == "" && b == "":
		return 1
	case a == "" || b == "":
		return 0
	case a == b:
		return 1
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	score := 1 - float64(v.lev.Distance(a, b))/float64(maxLen)
	if score < 0 {
		score = 0
	}
	if f := v.cfg.SubstringFloor; f > 0 && score < f && (strings.Contains(a, b) || strings.Contains(b, a)) {
		score = f
	}
	return score
}

func (v *Verifier) normalize(s string) string {
	s = norm.NFKC.String(s)
	// a Caser holds state, so one per call
	s = cases.Fold().String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

func unionKeys(a, b map[string]string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Verify runs a verifier with default thresholds.
func Verify(submitted, extracted map[string]string) entity.VerificationReport {
	return New(common.VerifyConfig{}).Verify(submitted, extracted)
}
