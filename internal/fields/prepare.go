package fields

// Prepare cleans recognized text without changing its byte length, so spans
// found in the result index the original text (and its token offsets).
//   - CR, tab, form feed and vertical tab become spaces or newlines
//   - NBSP becomes two spaces
//   - a 0 between two ASCII letters in an otherwise digit-free word becomes O
func Prepare(text string) string {
	b := []byte(text)
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\r':
			if i+1 < len(b) && b[i+1] == '\n' {
				b[i] = ' '
			} else {
				b[i] = '\n'
			}
		case '\f':
			b[i] = '\n'
		case '\t', '\v':
			b[i] = ' '
		case 0xC2:
			if i+1 < len(b) && b[i+1] == 0xA0 {
				b[i], b[i+1] = ' ', ' '
				i++
			}
		}
	}
	fixZeroInWords(b)
	return string(b)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n'
}

func fixZeroInWords(b []byte) {
	start := 0
	for i := 0; i <= len(b); i++ {
		if i < len(b) && !isSpace(b[i]) {
			continue
		}
		fixWord(b[start:i])
		start = i + 1
	}
}

func fixWord(w []byte) {
	zeros, digits := 0, 0
	for _, c := range w {
		switch {
		case c == '@':
			return
		case c == '0':
			zeros++
		case c >= '1' && c <= '9':
			digits++
		}
	}
	if zeros == 0 || digits > 0 {
		return
	}
	for i := 1; i+1 < len(w); i++ {
		if w[i] == '0' && isASCIILetter(w[i-1]) && isASCIILetter(w[i+1]) {
			w[i] = 'O'
		}
	}
}
