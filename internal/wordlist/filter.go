package wordlist

import "unicode/utf8"

// FilterFunc returns true when a word should be kept.
type FilterFunc func(string) bool

// Typeable keeps words made only of printable ASCII without spaces, which
// is what the US key map can produce.
func Typeable(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}

// ShorterThan keeps words with fewer than n runes.
func ShorterThan(n int) FilterFunc {
	return func(word string) bool {
		return utf8.RuneCountInString(word) < n
	}
}

// All keeps a word only when every filter keeps it.
func All(filters ...FilterFunc) FilterFunc {
	return func(word string) bool {
		for _, keep := range filters {
			if keep != nil && !keep(word) {
				return false
			}
		}
		return true
	}
}
