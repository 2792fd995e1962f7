package confidence

import (
	"math"
	"unicode/utf8"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// Weights gives each field's share of the document confidence. Fields not
// listed weigh 1.
type Weights map[constants.FieldKey]float64

func DefaultWeights() Weights {
	return Weights{
		constants.FieldName:        3,
		constants.FieldAge:         2,
		constants.FieldDateOfBirth: 2,
		constants.FieldGender:      1.5,
		constants.FieldPhone:       1.5,
		constants.FieldEmail:       1,
		constants.FieldAddress:     1,
	}
}

func (w Weights) of(k constants.FieldKey) float64 {
	if v, ok := w[k]; ok && v > 0 {
		return v
	}
	return 1
}

// ClassMultiplier is the trust placed in a match class.
func ClassMultiplier(c constants.MatchClass) float64 {
	switch c {
	case constants.MatchAnchor:
		return 1.0
	case constants.MatchHeuristic:
		return 0.7
	case constants.MatchModel:
		return 0.8
	default:
		return 0
	}
}

// Score rates one field in [0,1]: mean confidence of the tokens overlapping
// span, times the class multiplier. fallback is used when no token overlaps;
// a fallback of 0 means unknown and counts as 1.
func Score(field constants.FieldKey, value string, span entity.Span, tokens []entity.Token, fallback float64, class constants.MatchClass) float64 {
	if span.Len() == 0 || value == "" {
		return 0
	}
	if field == constants.FieldName && utf8.RuneCountInString(value) < 2 {
		return 0
	}

	base := fallback
	if sum, n := overlapping(span, tokens); n > 0 {
		base = sum / float64(n)
	} else if base <= 0 {
		base = 1
	}
	return Clamp(base * ClassMultiplier(class))
}

func overlapping(span entity.Span, tokens []entity.Token) (float64, int) {
	var sum float64
	n := 0
	for _, t := range tokens {
		if t.Start < span.End && span.Start < t.End {
			sum += t.Confidence
			n++
		}
	}
	return sum, n
}

func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Document is the weighted mean over present fields. An empty map scores 0.
func Document(conf map[constants.FieldKey]float64, w Weights) float64 {
	if w == nil {
		w = DefaultWeights()
	}
	var num, den float64
	for k, c := range conf {
		wt := w.of(k)
		num += wt * Clamp(c)
		den += wt
	}
	if den == 0 {
		return 0
	}
	return Clamp(num / den)
}

// Scorer binds weights for repeated use. It is immutable after construction.
type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) *Scorer {
	if len(w) == 0 {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

func (s *Scorer) Weights() Weights { return s.weights }

// Apply scores every field of fs against rt, whose text the spans index, and
// sets the document confidence.
func (s *Scorer) Apply(fs *entity.FieldSet, rt entity.RecognizedText) {
	for k, f := range fs.Fields {
		f.Confidence = Score(k, f.Value, f.Span, rt.Tokens, rt.MeanConfidence, f.Class)
		fs.Fields[k] = f
	}
	s.Recompute(fs)
}

// Recompute refreshes fs.DocumentConfidence from the per-field values.
func (s *Scorer) Recompute(fs *entity.FieldSet) {
	conf := make(map[constants.FieldKey]float64, len(fs.Fields))
	for k, f := range fs.Fields {
		conf[k] = f.Confidence
	}
	fs.DocumentConfidence = Document(conf, s.weights)
}
