// Package wordlist reads and cleans the common word lists used for typing.
package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoWords is returned when a list has nothing left after filtering.
var ErrNoWords = errors.New("no usable words")

// Read parses one word per line. Blank lines and lines starting with '#' are
// ignored; the rest go through Clean.
func Read(r io.Reader, keep FilterFunc) ([]string, error) {
	var raw []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	words := Clean(raw, keep)
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	return words, nil
}

// LoadWords reads the word file at path.
func LoadWords(path string, keep FilterFunc) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	words, err := Read(f, keep)
	if err != nil {
		return nil, fmt.Errorf("word list %s: %w", path, err)
	}
	return words, nil
}

// Clean trims words, drops the ones keep rejects and removes duplicates while
// preserving order. A nil keep accepts every non-empty word.
func Clean(words []string, keep FilterFunc) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || (keep != nil && !keep(w)) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
