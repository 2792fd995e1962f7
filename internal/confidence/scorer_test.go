package confidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/confidence"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

var tokens = []entity.Token{
	{Text: "Name:", Start: 0, End: 5, Confidence: 0.99},
	{Text: "Ravi", Start: 6, End: 10, Confidence: 0.9},
	{Text: "Kumar", Start: 11, End: 16, Confidence: 0.8},
}

func TestScore(t *testing.T) {
	span := entity.Span{Start: 6, End: 16}

	tests := []struct {
		name     string
		field    constants.FieldKey
		value    string
		span     entity.Span
		tokens   []entity.Token
		fallback float64
		class    constants.MatchClass
		want     float64
	}{
		{"anchor uses overlapping tokens", constants.FieldName, "Ravi Kumar", span, tokens, 0, constants.MatchAnchor, 0.85},
		{"heuristic multiplier", constants.FieldName, "Ravi Kumar", span, tokens, 0, constants.MatchHeuristic, 0.595},
		{"no tokens uses engine mean", constants.FieldAge, "34", span, nil, 0.6, constants.MatchAnchor, 0.6},
		{"unknown confidence counts as 1", constants.FieldAge, "34", span, nil, 0, constants.MatchAnchor, 1},
		{"zero-length span", constants.FieldAge, "34", entity.Span{Start: 4, End: 4}, tokens, 0, constants.MatchAnchor, 0},
		{"empty value", constants.FieldAge, "", span, tokens, 0, constants.MatchAnchor, 0},
		{"one-letter name", constants.FieldName, "R", span, tokens, 0, constants.MatchAnchor, 0},
		{"out of range token confidence is clamped", constants.FieldAge, "34", span, []entity.Token{{Start: 6, End: 8, Confidence: 3}}, 0, constants.MatchAnchor, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidence.Score(tt.field, tt.value, tt.span, tt.tokens, tt.fallback, tt.class)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestDocument(t *testing.T) {
	assert.Equal(t, 0.0, confidence.Document(nil, nil))

	got := confidence.Document(map[constants.FieldKey]float64{
		constants.FieldName:   0.9,
		constants.FieldGender: 0.5,
	}, nil)
	assert.InDelta(t, (3*0.9+1.5*0.5)/4.5, got, 1e-9)

	got = confidence.Document(map[constants.FieldKey]float64{
		constants.FieldKey("occupation"): 0.4,
	}, confidence.DefaultWeights())
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestScorer_Apply(t *testing.T) {
	rt := entity.RecognizedText{Text: "Name: Ravi Kumar", Tokens: tokens}
	fs := entity.NewFieldSet(constants.ScriptEnglish, constants.SourcePattern)
	fs.Set(constants.FieldName, entity.Field{Value: "Ravi Kumar", Span: entity.Span{Start: 6, End: 16}, Class: constants.MatchAnchor})

	confidence.NewScorer(nil).Apply(&fs, rt)

	assert.InDelta(t, 0.85, fs.Fields[constants.FieldName].Confidence, 1e-9)
	assert.InDelta(t, 0.85, fs.DocumentConfidence, 1e-9)
}
