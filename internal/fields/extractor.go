package fields

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// Extractor finds field values in recognized text using a pattern Table.
// It is stateless apart from the table and safe for concurrent use.
type Extractor struct {
	table  *Table
	logger *slog.Logger
}

func NewExtractor(table *Table, logger *slog.Logger) *Extractor {
	if table == nil {
		table = MustLoadDefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{table: table, logger: logger}
}

// Table exposes the compiled pattern table.
func (e *Extractor) Table() *Table { return e.table }

// Extract returns every field it can find in text. Confidence is left at zero
// for the scorer. Empty or unrecognizable text yields an empty set.
func (e *Extractor) Extract(text string, sc constants.Script) entity.FieldSet {
	fs := entity.NewFieldSet(sc, constants.SourcePattern)
	if strings.TrimSpace(text) == "" {
		return fs
	}

	scripts := e.table.Scripts(sc)
	r := &run{
		t:       e.table,
		script:  sc,
		scripts: scripts,
		stops:   e.table.stopFor(scripts),
		src:     Prepare(text),
		fs:      &fs,
	}

	// labeled values first so a heuristic never steals a labeled span
	for _, key := range constants.ExtractionOrder {
		if key == constants.FieldAddress {
			continue
		}
		r.resolve(key, constants.MatchAnchor)
	}
	for _, key := range constants.AddressParts {
		r.resolve(key, constants.MatchAnchor)
	}
	r.resolveAddress()

	for _, key := range constants.ExtractionOrder {
		if _, ok := fs.Get(key); !ok {
			r.resolve(key, constants.MatchHeuristic)
		}
	}

	fs.Components = SplitName(fs.Value(constants.FieldName))
	fs.Extra = r.dynamicFields()

	e.logger.Debug("fields.extract.done",
		"script", string(sc),
		"fields", len(fs.Fields),
		"extra", len(fs.Extra),
	)
	return fs
}

// run holds per-call state.
type run struct {
	t       *Table
	script  constants.Script
	scripts []constants.Script
	stops   []*regexp.Regexp
	src     string
	fs      *entity.FieldSet
	claimed []entity.Span
}

func (r *run) overlaps(s, e int) bool {
	for _, c := range r.claimed {
		if s < c.End && c.Start < e {
			return true
		}
	}
	return false
}

func (r *run) claim(key constants.FieldKey, value string, s, e int, p Pattern) {
	r.fs.Set(key, entity.Field{
		Value:   value,
		Span:    entity.Span{Start: s, End: e},
		Class:   p.Class,
		Pattern: p.Name,
	})
	r.claimed = append(r.claimed, entity.Span{Start: s, End: e})
}

// resolve tries the patterns of one class in order and keeps the first
// candidate that survives validation.
func (r *run) resolve(key constants.FieldKey, class constants.MatchClass) bool {
	norm := normalizerFor(key)
	for _, p := range r.t.Patterns(r.script, key) {
		if p.Class != class {
			continue
		}
		for _, c := range r.candidates(p) {
			if c.label >= 0 && r.blockedBy(p, c.label) {
				continue
			}
			s, e := r.trim(c.start, r.cut(c.start, c.end))
			if s >= e || r.overlaps(s, e) {
				continue
			}
			v, ok := norm(r.src[s:e], r.fs)
			if !ok {
				continue
			}
			r.claim(key, v, s, e, p)
			return true
		}
	}
	return false
}

func (r *run) candidates(p Pattern) []candidate {
	if p.find != nil {
		return p.find(r.t, r.src)
	}
	matches := p.re.FindAllStringSubmatchIndex(r.src, -1)
	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		if len(m) < 4 || m[2] < 0 {
			continue
		}
		label := -1
		if p.Class == constants.MatchAnchor {
			label = m[0]
		}
		out = append(out, candidate{start: m[2], end: m[3], label: label})
	}
	return out
}

// blockedBy reports whether the word before the label is one the pattern must
// not follow, as in "Father's Name" for name.
func (r *run) blockedBy(p Pattern, label int) bool {
	if len(p.notAfter) == 0 || (label < len(r.src) && r.src[label] == '\n') {
		return false
	}
	before := r.src[:label]
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		before = before[i+1:]
	}
	words := strings.Fields(before)
	if len(words) == 0 {
		return false
	}
	prev := strings.ToLower(strings.TrimFunc(words[len(words)-1], func(c rune) bool {
		return unicode.IsPunct(c) && c != '\'' && c != '’'
	}))
	prev = strings.ReplaceAll(prev, "’", "'")
	_, blocked := p.notAfter[prev]
	return blocked
}

// cut ends a value at the first following label, if any.
func (r *run) cut(s, e int) int {
	raw := r.src[s:e]
	end := len(raw)
	for _, re := range r.stops {
		if loc := re.FindStringIndex(raw); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	return s + end
}

// trim narrows [s,e) past surrounding whitespace.
func (r *run) trim(s, e int) (int, int) {
	for s < e && isTrimByte(r.src[s]) {
		s++
	}
	for e > s && isTrimByte(r.src[e-1]) {
		e--
	}
	return s, e
}

func isTrimByte(c byte) bool {
	return c == ' ' || c == '\n' || c == ',' || c == ';'
}
