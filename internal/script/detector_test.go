package script_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/script"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want constants.Script
	}{
		{"empty", "", constants.ScriptEnglish},
		{"symbols only", "12/05/1990 -- :: ##", constants.ScriptEnglish},
		{"latin", "Name: Ravi Kumar\nAge: 34", constants.ScriptEnglish},
		{"devanagari", "नाम: रवि कुमार\nउम्र: 34", constants.ScriptHindi},
		{"arabic", "الاسم: أحمد علي", constants.ScriptArabic},
		{"mixed", "Name नाम रवि कुमार Ravi Kumar", constants.ScriptMixed},
		{"latin with small devanagari label", "Name " + strings.Repeat("abcdefghij", 5) + " नाम", constants.ScriptEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, script.Detect(tt.text))
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	inputs := []string{"", "Ravi", "नाम रवि", "أحمد", "Ravi रवि أحمد", "!!!"}
	valid := map[constants.Script]bool{
		constants.ScriptEnglish: true,
		constants.ScriptHindi:   true,
		constants.ScriptArabic:  true,
		constants.ScriptMixed:   true,
	}
	for _, in := range inputs {
		first := script.Detect(in)
		require.True(t, valid[first], "unexpected script %q", first)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, script.Detect(in))
		}
	}
}

func TestDetector_MinorityShare(t *testing.T) {
	// 8 latin letters, 2 devanagari letters: devanagari share is 0.2
	text := "abcdefgh कि"
	assert.Equal(t, constants.ScriptMixed, script.NewDetector(0.15).Detect(text))
	assert.Equal(t, constants.ScriptEnglish, script.NewDetector(0.25).Detect(text))
}

func TestCount(t *testing.T) {
	sh := script.Count("ab अ")
	require.Equal(t, 3, sh.Total)
	assert.InDelta(t, 2.0/3.0, sh.Latin, 1e-9)
	assert.InDelta(t, 1.0/3.0, sh.Devanagari, 1e-9)
	assert.Zero(t, sh.Arabic)
}
