package fields_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/fields"
)

func TestParsePack_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown script":  "script: xx\nfields:\n  name:\n    keywords: [name]\n",
		"no fields":       "script: en\nfields: {}\n",
		"unknown builtin": "script: en\nfields:\n  name:\n    heuristics:\n      - builtin: nope\n",
		"empty field":     "script: en\nfields:\n  name: {}\n",
		"unknown key":     "script: en\nlabels: []\nfields:\n  name:\n    keywords: [name]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := fields.ParsePack(name, []byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNewTable_BadHeuristic(t *testing.T) {
	p, err := fields.ParsePack("en", []byte("script: en\nfields:\n  age:\n    heuristics:\n      - pattern: '\\d+'\n"))
	require.NoError(t, err)

	_, err = fields.NewTable(p)
	assert.ErrorContains(t, err, "capture group")
}

func TestNewTable_MissingFallback(t *testing.T) {
	p, err := fields.ParsePack("hi", []byte("script: hi\nfallback: en\nfields:\n  name:\n    keywords: [नाम]\n"))
	require.NoError(t, err)

	_, err = fields.NewTable(p)
	assert.Error(t, err)
}

func TestLoadPacks_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"packs/en.yaml": {Data: []byte("script: en\nfields:\n  name:\n    keywords: [name]\n")},
		"packs/README":  {Data: []byte("ignored")},
	}
	packs, err := fields.LoadPacks(fsys, "packs")
	require.NoError(t, err)
	require.Len(t, packs, 1)

	table, err := fields.NewTable(packs...)
	require.NoError(t, err)
	fs := fields.NewExtractor(table, nil).Extract("Name: Ravi Kumar", constants.ScriptEnglish)
	assert.Equal(t, "Ravi Kumar", fs.Value(constants.FieldName))
}

func TestTable_PatternOrder(t *testing.T) {
	table, err := fields.LoadDefaultTable()
	require.NoError(t, err)

	assert.Equal(t, []constants.Script{constants.ScriptHindi, constants.ScriptEnglish}, table.Scripts(constants.ScriptHindi))
	assert.Equal(t, []constants.Script{constants.ScriptEnglish, constants.ScriptHindi, constants.ScriptArabic}, table.Scripts(constants.ScriptMixed))

	pats := table.Patterns(constants.ScriptHindi, constants.FieldAge)
	require.Len(t, pats, 4)
	assert.Equal(t, constants.ScriptHindi, pats[0].Script)
	seenHeuristic := false
	for _, p := range pats {
		if p.Class == constants.MatchHeuristic {
			seenHeuristic = true
			continue
		}
		assert.False(t, seenHeuristic, "anchor %s after a heuristic", p.Name)
	}
}
