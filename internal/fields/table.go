package fields

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
)

// Pattern is one candidate way of finding a field value. Group 1 of re (or the
// span returned by find) is the value.
type Pattern struct {
	Name   string
	Class  constants.MatchClass
	Script constants.Script

	re       *regexp.Regexp
	find     finder
	notAfter map[string]struct{}
}

type tableKey struct {
	script constants.Script
	field  constants.FieldKey
}

// Table is the (script, field) -> ordered patterns lookup. It is built once and
// never mutated, so one *Table is shared by every extraction.
type Table struct {
	patterns  map[tableKey][]Pattern
	fallback  map[constants.Script]constants.Script
	stop      map[constants.Script]*regexp.Regexp
	lineStart map[constants.Script]*regexp.Regexp
	keywords  map[string]struct{}
	stopwords map[string]struct{}
	scripts   []constants.Script
}

// LoadDefaultTable builds the table from the embedded packs.
func LoadDefaultTable() (*Table, error) {
	packs, err := LoadPacks(defaultPacks, "packs")
	if err != nil {
		return nil, err
	}
	return NewTable(packs...)
}

// MustLoadDefaultTable panics when the embedded packs are broken.
func MustLoadDefaultTable() *Table {
	t, err := LoadDefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable compiles packs into a lookup table.
func NewTable(packs ...Pack) (*Table, error) {
	t := &Table{
		patterns:  make(map[tableKey][]Pattern),
		fallback:  make(map[constants.Script]constants.Script),
		stop:      make(map[constants.Script]*regexp.Regexp),
		lineStart: make(map[constants.Script]*regexp.Regexp),
		keywords:  make(map[string]struct{}),
		stopwords: make(map[string]struct{}),
	}

	for _, p := range packs {
		sc := constants.Script(p.Script)
		if _, dup := t.stop[sc]; dup {
			return nil, fmt.Errorf("duplicate pack for script %q", sc)
		}
		if p.Fallback != "" && p.Fallback != p.Script {
			t.fallback[sc] = constants.Script(p.Fallback)
		}
		for _, w := range p.NameStopwords {
			t.stopwords[w] = struct{}{}
		}

		var all []string
		for fieldName, spec := range p.Fields {
			key := tableKey{script: sc, field: constants.FieldKey(fieldName)}
			var pats []Pattern

			if len(spec.Keywords) > 0 {
				re, err := anchorRegexp(spec.Keywords, valueExpr(key.field), spec.RequireSeparator)
				if err != nil {
					return nil, fmt.Errorf("pack %s field %s: %w", sc, fieldName, err)
				}
				notAfter := make(map[string]struct{}, len(spec.NotAfter))
				for _, w := range spec.NotAfter {
					notAfter[strings.ToLower(w)] = struct{}{}
				}
				pats = append(pats, Pattern{
					Name:     fmt.Sprintf("%s.%s.anchor", sc, fieldName),
					Class:    constants.MatchAnchor,
					Script:   sc,
					re:       re,
					notAfter: notAfter,
				})
				for _, kw := range spec.Keywords {
					t.keywords[strings.ToLower(kw)] = struct{}{}
				}
				all = append(all, spec.Keywords...)
			}

			for i, h := range spec.Heuristics {
				pat := Pattern{
					Name:   fmt.Sprintf("%s.%s.heuristic.%d", sc, fieldName, i),
					Class:  constants.MatchHeuristic,
					Script: sc,
				}
				switch {
				case h.Builtin != "":
					f, ok := builtins[h.Builtin]
					if !ok {
						return nil, fmt.Errorf("pack %s field %s: unknown builtin %q", sc, fieldName, h.Builtin)
					}
					pat.find = f
					pat.Name = fmt.Sprintf("%s.%s.%s", sc, fieldName, h.Builtin)
				default:
					re, err := regexp.Compile(h.Pattern)
					if err != nil {
						return nil, fmt.Errorf("pack %s field %s: heuristic %d: %w", sc, fieldName, i, err)
					}
					if re.NumSubexp() < 1 {
						return nil, fmt.Errorf("pack %s field %s: heuristic %d needs a capture group", sc, fieldName, i)
					}
					pat.re = re
				}
				pats = append(pats, pat)
			}
			t.patterns[key] = pats
		}

		t.stop[sc] = stopRegexp(all)
		t.lineStart[sc] = lineStartRegexp(all)
		t.scripts = append(t.scripts, sc)
	}

	for sc, fb := range t.fallback {
		if _, ok := t.stop[fb]; !ok {
			return nil, fmt.Errorf("pack %s falls back to missing pack %s", sc, fb)
		}
	}
	if len(t.scripts) == 0 {
		return nil, fmt.Errorf("no packs")
	}
	return t, nil
}

// Scripts returns the scripts to consult for text of script sc, in priority order.
func (t *Table) Scripts(sc constants.Script) []constants.Script {
	if sc == constants.ScriptMixed {
		var out []constants.Script
		for _, s := range constants.PackScripts {
			if _, ok := t.stop[s]; ok {
				out = append(out, s)
			}
		}
		return out
	}
	if _, ok := t.stop[sc]; !ok {
		sc = constants.DefaultScript
	}
	out := []constants.Script{sc}
	seen := map[constants.Script]bool{sc: true}
	for fb, ok := t.fallback[sc]; ok && !seen[fb]; fb, ok = t.fallback[fb] {
		out = append(out, fb)
		seen[fb] = true
	}
	return out
}

// Patterns returns the ordered patterns for (script, field). All anchors of
// the consulted scripts come before any heuristic.
func (t *Table) Patterns(sc constants.Script, field constants.FieldKey) []Pattern {
	var anchors, heuristics []Pattern
	for _, s := range t.Scripts(sc) {
		for _, p := range t.patterns[tableKey{script: s, field: field}] {
			if p.Class == constants.MatchAnchor {
				anchors = append(anchors, p)
			} else {
				heuristics = append(heuristics, p)
			}
		}
	}
	return append(anchors, heuristics...)
}

// IsKeyword reports whether label is a known field label in any pack.
func (t *Table) IsKeyword(label string) bool {
	_, ok := t.keywords[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

func (t *Table) isNameStopword(w string) bool {
	_, ok := t.stopwords[strings.ToLower(w)]
	return ok
}

// stopFor returns the regexps that cut a value at the next label.
func (t *Table) stopFor(scripts []constants.Script) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(scripts))
	for _, s := range scripts {
		if re := t.stop[s]; re != nil {
			out = append(out, re)
		}
	}
	return out
}

func (t *Table) startsWithLabel(scripts []constants.Script, line string) bool {
	for _, s := range scripts {
		if re := t.lineStart[s]; re != nil && re.MatchString(line) {
			return true
		}
	}
	return false
}

// keywordAlternation quotes keywords longest first so the longer label wins
// at the same position.
func keywordAlternation(keywords []string) string {
	kws := make([]string, 0, len(keywords))
	seen := map[string]bool{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		kws = append(kws, k)
	}
	sort.SliceStable(kws, func(i, j int) bool { return len(kws[i]) > len(kws[j]) })
	parts := make([]string, len(kws))
	for i, k := range kws {
		q := regexp.QuoteMeta(k)
		parts[i] = strings.ReplaceAll(q, " ", `\s+`)
	}
	return strings.Join(parts, "|")
}

const labelPrefix = `(?:^|[^\pL\pM])`

func anchorRegexp(keywords []string, value string, requireSep bool) (*regexp.Regexp, error) {
	sep := `(?:[ \t]*[:：\-–.][ \t]*|[ \t]+)`
	if requireSep {
		sep = `[ \t]*[:：][ \t]*`
	}
	return regexp.Compile(`(?im)` + labelPrefix + `(?:` + keywordAlternation(keywords) + `)` + sep + value)
}

func stopRegexp(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\s+(?:` + keywordAlternation(keywords) + `)(?:[ \t]*[:：\-]|[ \t]+\d|[ \t]*$)`)
}

func lineStartRegexp(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)^\s*(?:` + keywordAlternation(keywords) + `)(?:[^\pL\pM]|$)`)
}
