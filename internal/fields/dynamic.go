package fields

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/idverify/constants"
)

const maxExtra = 32

var reLabelLine = regexp.MustCompile(`(?m)^[ \t]*(\pL[\pL\pM .'/]{0,40}?)[ \t]*[:：][ \t]*([^\n]*\S)[ \t]*$`)

// dynamicFields collects "Label: value" lines whose label is not a known field.
func (r *run) dynamicFields() map[string]string {
	out := map[string]string{}
	for _, m := range reLabelLine.FindAllStringSubmatch(r.src, -1) {
		if len(out) >= maxExtra {
			break
		}
		label := strings.TrimSpace(m[1])
		if r.t.IsKeyword(label) {
			continue
		}
		if _, known := constants.Canonicalize(label); known {
			continue
		}
		key := labelKey(label)
		if key == "" {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		if v := collapse(m[2]); v != "" {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// labelKey snake-cases a label, keeping letters of any script.
func labelKey(label string) string {
	var b strings.Builder
	sep := false
	for _, c := range strings.ToLower(label) {
		if unicode.IsLetter(c) || unicode.IsMark(c) || unicode.IsDigit(c) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(c)
			sep = false
			continue
		}
		sep = true
	}
	return b.String()
}
