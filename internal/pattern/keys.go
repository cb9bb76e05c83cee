package pattern

import (
	"unicode"

	"github.com/verte-zerg/inputsim/internal/model"
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// qwertyRows is the unshifted US layout used to pick typo neighbours.
var qwertyRows = []string{
	"1234567890-=",
	"qwertyuiop[]",
	"asdfghjkl;'",
	"zxcvbnm,./",
}

// keyboardNeighbors maps a key to the keys around it, up to eight.
var keyboardNeighbors = buildNeighbors(qwertyRows)

func buildNeighbors(rows []string) map[rune][]rune {
	out := make(map[rune][]rune)
	for r, row := range rows {
		cols := []rune(row)
		for c, ch := range cols {
			var adj []rune
			for rr := r - 1; rr <= r+1; rr++ {
				if rr < 0 || rr >= len(rows) {
					continue
				}
				other := []rune(rows[rr])
				for cc := c - 1; cc <= c+1; cc++ {
					if cc < 0 || cc >= len(other) || (rr == r && cc == c) {
						continue
					}
					adj = append(adj, other[cc])
				}
			}
			out[ch] = adj
		}
	}
	return out
}

// Neighbors returns the keys adjacent to ch. Characters off the table fall
// back to the whole alphabet.
func Neighbors(ch rune) []rune {
	if adj, ok := keyboardNeighbors[unicode.ToLower(ch)]; ok && len(adj) > 0 {
		return adj
	}
	return []rune(letters)
}

// oemKeys covers punctuation on the US layout, shifted forms included.
var oemKeys = map[rune]model.KeyCode{
	';': 0xBA, ':': 0xBA,
	'=': 0xBB, '+': 0xBB,
	',': 0xBC, '<': 0xBC,
	'-': 0xBD, '_': 0xBD,
	'.': 0xBE, '>': 0xBE,
	'/': 0xBF, '?': 0xBF,
	'`': 0xC0, '~': 0xC0,
	'[': 0xDB, '{': 0xDB,
	'\\': 0xDC, '|': 0xDC,
	']': 0xDD, '}': 0xDD,
	'\'': 0xDE, '"': 0xDE,
	')': '0', '!': '1', '@': '2', '#': '3', '$': '4',
	'%': '5', '^': '6', '&': '7', '*': '8', '(': '9',
}

// KeyFor maps a character to the virtual key that produces it.
func KeyFor(ch rune) (model.KeyCode, bool) {
	switch {
	case ch >= 'a' && ch <= 'z':
		return model.KeyCode(ch - 'a' + 'A'), true
	case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return model.KeyCode(ch), true
	case ch == ' ':
		return model.KeySpace, true
	case ch == '\n':
		return model.KeyEnter, true
	case ch == '\t':
		return model.KeyTab, true
	}
	code, ok := oemKeys[ch]
	return code, ok
}

// namedKey is a non-text key chosen by the special_key pattern.
type namedKey struct {
	Name string
	Code model.KeyCode
	Char rune
}

var specialKeys = []namedKey{
	{Name: "space", Code: model.KeySpace, Char: ' '},
	{Name: "enter", Code: model.KeyEnter},
	{Name: "backspace", Code: model.KeyBackspace},
	{Name: "tab", Code: model.KeyTab},
	{Name: "shift", Code: model.KeyShift},
	{Name: "ctrl", Code: model.KeyControl},
	{Name: "alt", Code: model.KeyAlt},
	{Name: "capslock", Code: model.KeyCapsLock},
	{Name: "escape", Code: model.KeyEscape},
}
