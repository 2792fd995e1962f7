package llm

import (
	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/confidence"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/fields"
)

// DefaultModelConfidence is assumed when the model reports none.
const DefaultModelConfidence = 0.8

// ToFieldSet runs every value through the field normalizers and scores it as
// model output. Values a normalizer rejects are dropped and returned.
func ToFieldSet(f IdentityFields, lang constants.Script, scorer *confidence.Scorer) (entity.FieldSet, []string) {
	if scorer == nil {
		scorer = confidence.NewScorer(nil)
	}
	mc := f.ModelConfidence
	if mc <= 0 || mc > 1 {
		mc = DefaultModelConfidence
	}
	conf := confidence.Clamp(mc * confidence.ClassMultiplier(constants.MatchModel))

	fs := entity.NewFieldSet(lang, constants.SourceLLM)
	var rejected []string
	for k, raw := range f.Values() {
		v, ok := fields.NormalizeValue(k, raw)
		if !ok {
			rejected = append(rejected, string(k))
			continue
		}
		fs.Set(k, entity.Field{Value: v, Confidence: conf, Class: constants.MatchModel})
	}
	if name := fs.Value(constants.FieldName); name != "" {
		fs.Components = fields.SplitName(name)
	}
	scorer.Recompute(&fs)
	return fs, rejected
}
