package fields

import (
	"regexp"
	"sort"
	"strings"
)

// candidate is a value span in prepared text.
type candidate struct {
	start, end int
	// label is the start of the whole anchor match; -1 for heuristics
	label int
}

type finder func(t *Table, text string) []candidate

var builtins = map[string]finder{
	"name_line": findNameLine,
}

func builtinNames() []string {
	out := make([]string, 0, len(builtins))
	for k := range builtins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var reNameLine = regexp.MustCompile(`^(?:[A-Z][A-Za-z'\-]*\.?\s+){1,3}[A-Z][A-Za-z'\-]*\.?$`)

// findNameLine proposes a line of 2-4 capitalized words, with no colon or
// digits, from the first three non-empty lines.
func findNameLine(t *Table, text string) []candidate {
	var out []candidate
	pos, seen := 0, 0
	for pos <= len(text) && seen < 3 {
		end := strings.IndexByte(text[pos:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += pos
		}
		line := text[pos:end]
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			seen++
			if !strings.ContainsAny(trimmed, ":：0123456789") && reNameLine.MatchString(trimmed) && !t.hasNameStopword(trimmed) {
				off := strings.Index(line, trimmed)
				out = append(out, candidate{start: pos + off, end: pos + off + len(trimmed), label: -1})
			}
		}
		if end >= len(text) {
			break
		}
		pos = end + 1
	}
	return out
}

func (t *Table) hasNameStopword(line string) bool {
	for _, w := range strings.Fields(line) {
		if t.isNameStopword(strings.Trim(w, ".'-")) {
			return true
		}
	}
	return false
}
