package reconcile

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/confidence"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

const DefaultThreshold = 0.75

// Candidate is one step of the priority chain. The first candidate with a
// result that Accept approves wins.
type Candidate struct {
	Name   string
	Result *entity.FieldSet
	Accept func(entity.FieldSet) bool
}

// Reconciler picks between the pattern result and the secondary result.
type Reconciler struct {
	threshold float64
	scorer    *confidence.Scorer
	logger    *slog.Logger
}

func New(threshold float64, scorer *confidence.Scorer, logger *slog.Logger) *Reconciler {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if scorer == nil {
		scorer = confidence.NewScorer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{threshold: threshold, scorer: scorer, logger: logger}
}

func (r *Reconciler) Threshold() float64 { return r.threshold }

// NeedsSecondary reports whether primary falls short of the acceptance
// threshold, i.e. whether a secondary result is worth asking for.
func (r *Reconciler) NeedsSecondary(primary entity.FieldSet) bool {
	return primary.DocumentConfidence < r.threshold
}

// Chain builds the ordered candidates:
//  1. primary, when its document confidence reaches the threshold
//  2. secondary, when present and non-empty
//  3. primary, normalized
func (r *Reconciler) Chain(primary, secondary *entity.FieldSet) []Candidate {
	chain := make([]Candidate, 0, 3)
	if primary != nil {
		chain = append(chain, Candidate{
			Name:   "primary",
			Result: primary,
			Accept: func(fs entity.FieldSet) bool { return fs.DocumentConfidence >= r.threshold },
		})
	}
	if secondary != nil {
		chain = append(chain, Candidate{
			Name:   "secondary",
			Result: secondary,
			Accept: func(fs entity.FieldSet) bool { return !fs.Empty() },
		})
	}
	if primary != nil {
		norm := r.Normalize(*primary)
		chain = append(chain, Candidate{
			Name:   "primary_normalized",
			Result: &norm,
			Accept: func(entity.FieldSet) bool { return true },
		})
	}
	return chain
}

// Select runs the chain. ok is false only when no candidate accepted.
func Select(chain []Candidate) (entity.FieldSet, string, bool) {
	for _, c := range chain {
		if c.Result == nil || c.Accept == nil {
			continue
		}
		if c.Accept(*c.Result) {
			return c.Result.Clone(), c.Name, true
		}
	}
	return entity.FieldSet{}, "", false
}

// Reconcile returns the chosen field set. It never returns an empty result
// when primary is non-nil and non-empty.
func (r *Reconciler) Reconcile(primary, secondary *entity.FieldSet) entity.FieldSet {
	out, chosen, ok := Select(r.Chain(primary, secondary))
	if !ok {
		return entity.NewFieldSet(constants.DefaultScript, constants.SourcePattern)
	}
	r.logger.Debug("reconcile.selected",
		"candidate", chosen,
		"source", string(out.Source),
		"document_confidence", out.DocumentConfidence,
		"threshold", r.threshold,
	)
	return out
}

// Normalize trims values, drops empty ones, clamps confidences and
// recomputes the document confidence.
func (r *Reconciler) Normalize(fs entity.FieldSet) entity.FieldSet {
	out := fs.Clone()
	out.Fields = make(map[constants.FieldKey]entity.Field, len(fs.Fields))
	for k, f := range fs.Fields {
		f.Value = strings.TrimSpace(f.Value)
		f.Confidence = confidence.Clamp(f.Confidence)
		out.Set(k, f)
	}
	r.scorer.Recompute(&out)
	return out
}
