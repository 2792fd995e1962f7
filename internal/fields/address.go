package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

const maxAddressLines = 3

var (
	reSubLabel     = regexp.MustCompile(`(?i)^line\s*\d`)
	reCommaRuns    = regexp.MustCompile(`\s*,[\s,]*`)
	addressPattern = Pattern{Name: "address.parts", Class: constants.MatchAnchor}
)

// resolveAddress captures a labeled address block: the rest of the label line
// (or the next line when the label stands alone) plus continuation lines until
// a blank line or another label. When only sub-labels are present the address
// is composed from them.
func (r *run) resolveAddress() {
	for _, p := range r.t.Patterns(r.script, constants.FieldAddress) {
		if p.Class != constants.MatchAnchor || p.re == nil {
			continue
		}
		for _, c := range r.candidates(p) {
			if r.blockedBy(p, c.label) {
				continue
			}
			if v, s, e, ok := r.addressBlock(c); ok && !r.overlaps(s, e) {
				r.claim(constants.FieldAddress, v, s, e, p)
				return
			}
		}
	}
	r.composeAddress()
}

func (r *run) addressBlock(c candidate) (string, int, int, bool) {
	first := strings.TrimSpace(r.src[c.start:c.end])
	if reSubLabel.MatchString(first) {
		return "", 0, 0, false
	}

	var lines []entity.Span
	if first != "" {
		s, e := r.trim(c.start, r.cut(c.start, c.end))
		if s < e {
			lines = append(lines, entity.Span{Start: s, End: e})
		}
		if e < c.end {
			// another label follows on the same line
			return r.joinAddress(lines)
		}
	}

	pos := c.end
	for len(lines) < maxAddressLines {
		if pos >= len(r.src) || r.src[pos] != '\n' {
			break
		}
		ls := pos + 1
		le := strings.IndexByte(r.src[ls:], '\n')
		if le < 0 {
			le = len(r.src)
		} else {
			le += ls
		}
		line := r.src[ls:le]
		if strings.TrimSpace(line) == "" || strings.ContainsAny(line, ":：") || r.t.startsWithLabel(r.scripts, line) {
			break
		}
		s, e := r.trim(ls, le)
		lines = append(lines, entity.Span{Start: s, End: e})
		pos = le
	}
	return r.joinAddress(lines)
}

func (r *run) joinAddress(lines []entity.Span) (string, int, int, bool) {
	if len(lines) == 0 {
		return "", 0, 0, false
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, r.src[l.Start:l.End])
	}
	v, ok := normalizeAddress(strings.Join(parts, ", "))
	if !ok {
		return "", 0, 0, false
	}
	return v, lines[0].Start, lines[len(lines)-1].End, true
}

func normalizeAddress(raw string) (string, bool) {
	s := collapse(raw)
	s = reCommaRuns.ReplaceAllString(s, ", ")
	s = strings.Trim(s, " ,;")
	if letterCount(s) < 3 {
		return "", false
	}
	return s, true
}

// composeAddress joins whichever of line1, line2, city, state and country were
// found. The span covers all of them.
func (r *run) composeAddress() {
	var parts []string
	span := entity.Span{Start: -1}
	for _, k := range constants.AddressParts {
		f, ok := r.fs.Get(k)
		if !ok {
			continue
		}
		parts = append(parts, f.Value)
		if span.Start < 0 || f.Span.Start < span.Start {
			span.Start = f.Span.Start
		}
		if f.Span.End > span.End {
			span.End = f.Span.End
		}
	}
	if len(parts) == 0 {
		return
	}
	r.fs.Set(constants.FieldAddress, entity.Field{
		Value:   strings.Join(parts, ", "),
		Span:    span,
		Class:   addressPattern.Class,
		Pattern: addressPattern.Name,
	})
}
