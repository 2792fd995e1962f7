package fields

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/idverify/internal/entity"
)

// SplitName breaks a full name into first, middle and last. Leading initials
// ("N.", "S") stay attached to the word that follows them.
func SplitName(full string) *entity.NameComponents {
	words := strings.Fields(full)
	if len(words) == 0 {
		return nil
	}

	parts := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		w, last := words[i], words[i]
		for isInitial(last) && i+1 < len(words) {
			i++
			last = words[i]
			w += " " + last
		}
		parts = append(parts, w)
	}

	switch len(parts) {
	case 1:
		return &entity.NameComponents{First: parts[0]}
	case 2:
		return &entity.NameComponents{First: parts[0], Last: parts[1]}
	default:
		return &entity.NameComponents{
			First:  parts[0],
			Middle: strings.Join(parts[1:len(parts)-1], " "),
			Last:   parts[len(parts)-1],
		}
	}
}

func isInitial(w string) bool {
	w = strings.TrimSuffix(w, ".")
	return utf8.RuneCountInString(w) == 1
}
