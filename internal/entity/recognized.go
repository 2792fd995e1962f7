package entity

import "strings"

// Token is one recognized word. Start/End are byte offsets into RecognizedText.Text.
type Token struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"` // 0..1
}

// RecognizedText is what a recognition engine returns for one or more pages.
type RecognizedText struct {
	Text           string  `json:"text"`
	Tokens         []Token `json:"tokens,omitempty"`
	LanguageHint   string  `json:"language_hint,omitempty"`
	Engine         string  `json:"engine"`
	MeanConfidence float64 `json:"mean_confidence"` // 0 when the engine reports none
}

// TextBuilder assembles RecognizedText from words while keeping token offsets
// consistent with the final string.
type TextBuilder struct {
	b      strings.Builder
	tokens []Token
	line   bool
}

// Word appends a token, separated from the previous one by a space unless a
// line was just broken.
func (tb *TextBuilder) Word(text string, conf float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if tb.b.Len() > 0 && !tb.line {
		tb.b.WriteByte(' ')
	}
	start := tb.b.Len()
	tb.b.WriteString(text)
	tb.tokens = append(tb.tokens, Token{Text: text, Start: start, End: tb.b.Len(), Confidence: conf})
	tb.line = false
}

// Newline ends the current line. Repeated calls produce at most one blank line.
func (tb *TextBuilder) Newline() {
	if tb.b.Len() == 0 {
		return
	}
	s := tb.b.String()
	if strings.HasSuffix(s, "\n\n") {
		return
	}
	tb.b.WriteByte('\n')
	tb.line = true
}

// Append joins another page's text after a page break.
func (tb *TextBuilder) Append(rt RecognizedText) {
	if rt.Text == "" {
		return
	}
	if tb.b.Len() > 0 {
		tb.b.WriteString("\n\n")
	}
	offset := tb.b.Len()
	tb.b.WriteString(rt.Text)
	for _, t := range rt.Tokens {
		t.Start += offset
		t.End += offset
		tb.tokens = append(tb.tokens, t)
	}
	tb.line = false
}

// Build returns the text with mean token confidence filled in.
func (tb *TextBuilder) Build(engine, lang string) RecognizedText {
	rt := RecognizedText{
		Text:         strings.TrimRight(tb.b.String(), "\n"),
		Tokens:       tb.tokens,
		LanguageHint: lang,
		Engine:       engine,
	}
	rt.MeanConfidence = MeanTokenConfidence(rt.Tokens)
	return rt
}

func MeanTokenConfidence(tokens []Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.Confidence
	}
	return sum / float64(len(tokens))
}
