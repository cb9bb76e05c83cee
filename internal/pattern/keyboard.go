package pattern

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/verte-zerg/inputsim/internal/config"
	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/wordlist"
)

// KeyHold is the pause between a key's down and up events.
const KeyHold = 80 * time.Millisecond

const maxCommonWordRunes = 32

// KeyboardPatterns lists every weighted keyboard pattern.
var KeyboardPatterns = []Pattern{CommonWord, RandomWord, Sentence, CodeSnippet, NumberSequence}

var defaultCommonWords = []string{"the", "and", "to", "of", "a", "in", "is", "it", "you", "that"}

var codeSnippets = []string{
	"if(x>0){return true;}",
	"for(int i=0;i<10;i++){}",
	"function test(){return null;}",
	"const x = [];",
	"let result = a + b;",
	"class Test{constructor(){}}",
	"import os\nprint('hello')",
	"def main():\n    return 0",
	"while(true){break;}",
}

var sentenceEnds = []rune{'.', '!', '?'}

// KeyboardSettings configures the keyboard generators.
type KeyboardSettings struct {
	Bounds                    model.Bounds
	KeyIntervalMin            time.Duration
	KeyIntervalMax            time.Duration
	WordLengthMin             int
	WordLengthMax             int
	SentenceMinWords          int
	SentenceMaxWords          int
	NumberMinLength           int
	NumberMaxLength           int
	TypoProbability           float64
	CorrectionProbability     float64
	CapitalizationProbability float64
	CommonWordsProbability    float64
	SpecialKeyProbability     float64
	SpaceAfterWordProbability float64
	CommonWords               []string
	Patterns                  []Descriptor
}

// DefaultKeyboardSettings returns the built-in keyboard behaviour.
func DefaultKeyboardSettings() KeyboardSettings {
	return KeyboardSettings{
		Bounds:                    DefaultBounds,
		KeyIntervalMin:            100 * time.Millisecond,
		KeyIntervalMax:            300 * time.Millisecond,
		WordLengthMin:             3,
		WordLengthMax:             8,
		SentenceMinWords:          3,
		SentenceMaxWords:          8,
		NumberMinLength:           3,
		NumberMaxLength:           10,
		TypoProbability:           0.05,
		CorrectionProbability:     0.8,
		CapitalizationProbability: 0.2,
		CommonWordsProbability:    0.7,
		SpecialKeyProbability:     0.05,
		SpaceAfterWordProbability: 0.9,
		CommonWords:               append([]string(nil), defaultCommonWords...),
		Patterns: []Descriptor{
			{Pattern: CommonWord, Weight: 0.4},
			{Pattern: RandomWord, Weight: 0.2},
			{Pattern: Sentence, Weight: 0.2},
			{Pattern: CodeSnippet, Weight: 0.1},
			{Pattern: NumberSequence, Weight: 0.1},
		},
	}
}

// LoadKeyboardSettings resolves keyboard settings from configuration.
func LoadKeyboardSettings(r *config.Reader) KeyboardSettings {
	s := DefaultKeyboardSettings()
	logger := r.Logger()

	s.Bounds = LoadBounds(r)
	lo, hi := r.FloatRange("key_interval_min", "key_interval_max",
		s.KeyIntervalMin.Seconds(), s.KeyIntervalMax.Seconds(), 0)
	s.KeyIntervalMin = seconds(lo)
	s.KeyIntervalMax = seconds(hi)
	s.WordLengthMin, s.WordLengthMax = r.IntRange("word_length_min", "word_length_max",
		s.WordLengthMin, s.WordLengthMax, 1)
	s.SentenceMinWords, s.SentenceMaxWords = r.IntRange("sentence_min_words", "sentence_max_words",
		s.SentenceMinWords, s.SentenceMaxWords, 1)
	s.NumberMinLength, s.NumberMaxLength = r.IntRange("number_min_length", "number_max_length",
		s.NumberMinLength, s.NumberMaxLength, 1)

	s.TypoProbability = r.Probability("typo_probability", s.TypoProbability)
	s.CorrectionProbability = r.Probability("correction_probability", s.CorrectionProbability)
	s.CapitalizationProbability = r.Probability("capitalization_probability", s.CapitalizationProbability)
	s.CommonWordsProbability = r.Probability("common_words_probability", s.CommonWordsProbability)
	s.SpecialKeyProbability = r.Probability("special_key_probability", s.SpecialKeyProbability)
	s.SpaceAfterWordProbability = r.Probability("space_after_word_probability", s.SpaceAfterWordProbability)

	keep := wordlist.All(wordlist.Typeable, wordlist.ShorterThan(maxCommonWordRunes))
	words := r.Strings("common_words", s.CommonWords)
	if path := r.String("common_words_file", ""); path != "" {
		loaded, err := wordlist.LoadWords(path, keep)
		if err != nil {
			logger.Warn("failed to load common words file", "path", path, "err", err)
		} else {
			words = loaded
		}
	}
	s.CommonWords = wordlist.Clean(words, keep)
	if len(s.CommonWords) == 0 {
		logger.Warn("no usable common words, using built-in list")
		s.CommonWords = append([]string(nil), defaultCommonWords...)
	}

	if names := r.Strings("typing_patterns", nil); names != nil {
		patterns := parsePatterns(names, KeyboardPatterns, logger)
		if len(patterns) == 0 {
			logger.Warn("no known typing patterns configured, using defaults")
		} else {
			s.Patterns = Describe(patterns, r.Floats("typing_pattern_weights", nil), logger)
		}
	}
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Keyboard generates keystroke sequences.
type Keyboard struct {
	settings KeyboardSettings
	logger   *slog.Logger
}

// NewKeyboard builds the keyboard device.
func NewKeyboard(settings KeyboardSettings, logger *slog.Logger) *Keyboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(settings.Patterns) == 0 {
		settings.Patterns = DefaultKeyboardSettings().Patterns
	}
	return &Keyboard{settings: settings, logger: logger}
}

// Name identifies the device.
func (k *Keyboard) Name() string { return "keyboard" }

// Bounds returns the receiving surface size.
func (k *Keyboard) Bounds() model.Bounds { return k.settings.Bounds }

// Patterns returns the weighted keyboard patterns.
func (k *Keyboard) Patterns() []Descriptor {
	return append([]Descriptor(nil), k.settings.Patterns...)
}

// Plan picks the next pattern and generates it. A special key is chosen
// ahead of the weighted patterns with special_key_probability.
func (k *Keyboard) Plan(rng *rand.Rand, cursor model.Point) Sequence {
	if rng.Float64() < k.settings.SpecialKeyProbability {
		return k.Generate(SpecialKey, rng, cursor)
	}
	return k.Generate(Choose(rng, k.settings.Patterns), rng, cursor)
}

// Generate runs one keyboard pattern. The cursor is unused.
func (k *Keyboard) Generate(p Pattern, rng *rand.Rand, _ model.Point) Sequence {
	t := &typist{rng: rng, settings: &k.settings}
	switch p {
	case CommonWord:
		t.word(k.commonWord(rng), true)
		t.maybeSpace()
	case RandomWord:
		t.word(randomLetters(rng, intBetween(rng, k.settings.WordLengthMin, k.settings.WordLengthMax)), true)
		t.maybeSpace()
	case Sentence:
		k.sentence(t)
	case CodeSnippet:
		t.code(codeSnippets[rng.Intn(len(codeSnippets))])
	case NumberSequence:
		n := intBetween(rng, k.settings.NumberMinLength, k.settings.NumberMaxLength)
		for i := 0; i < n; i++ {
			t.typeRune(rune('0' + rng.Intn(10)))
		}
	case SpecialKey:
		key := specialKeys[rng.Intn(len(specialKeys))]
		t.press(key.Code, key.Char)
		return Sequence{Pattern: p, Events: t.b.events, Summary: fmt.Sprintf("special key '%s'", key.Name)}
	default:
		k.logger.Warn("unknown typing pattern, using random word", "pattern", string(p))
		return k.Generate(RandomWord, rng, model.Point{})
	}
	return Sequence{Pattern: p, Events: t.b.events, Summary: fmt.Sprintf("%s '%s'", describe(p), string(t.visible))}
}

func (k *Keyboard) commonWord(rng *rand.Rand) string {
	words := k.settings.CommonWords
	if len(words) == 0 {
		words = defaultCommonWords
	}
	return words[rng.Intn(len(words))]
}

func (k *Keyboard) sentence(t *typist) {
	rng := t.rng
	n := intBetween(rng, k.settings.SentenceMinWords, k.settings.SentenceMaxWords)
	for i := 0; i < n; i++ {
		var w string
		if rng.Float64() < k.settings.CommonWordsProbability {
			w = k.commonWord(rng)
		} else {
			w = randomLetters(rng, intBetween(rng, 2, 7))
		}
		if i == 0 {
			w = capitalize(w)
		}
		t.word(w, false)
		if i < n-1 {
			t.typeRune(' ')
		}
	}
	t.typeRune(sentenceEnds[rng.Intn(len(sentenceEnds))])
}

func describe(p Pattern) string {
	return strings.ReplaceAll(string(p), "_", " ")
}

func randomLetters(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(letters[rng.Intn(len(letters))])
	}
	return sb.String()
}

func capitalize(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyCaps(rng *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 || rng.Float64() >= capsPct {
		return word
	}
	return capitalize(word)
}

// typist converts characters into keystrokes and tracks the text they leave behind.
type typist struct {
	rng      *rand.Rand
	settings *KeyboardSettings
	b        builder
	pressed  bool
	visible  []rune
}

// press emits one keystroke. Every keystroke after the first is preceded by
// a key interval.
func (t *typist) press(code model.KeyCode, ch rune) {
	if t.pressed {
		t.b.wait(uniformDuration(t.rng, t.settings.KeyIntervalMin, t.settings.KeyIntervalMax))
	}
	t.pressed = true
	t.b.emit(model.NewKeyDown(code))
	if ch != 0 && unicode.IsPrint(ch) {
		t.b.emit(model.NewCharInput(ch))
	}
	t.b.wait(KeyHold)
	t.b.emit(model.NewKeyUp(code))

	switch {
	case code == model.KeyBackspace:
		if len(t.visible) > 0 {
			t.visible = t.visible[:len(t.visible)-1]
		}
	case code == model.KeyEnter:
		t.visible = append(t.visible, '\n')
	case code == model.KeyTab:
		t.visible = append(t.visible, '\t')
	case ch != 0 && unicode.IsPrint(ch):
		t.visible = append(t.visible, ch)
	}
}

func (t *typist) typeRune(ch rune) {
	code, ok := KeyFor(ch)
	if !ok {
		return
	}
	t.press(code, ch)
}

// word types w, optionally capitalizing it, with typos and corrections.
func (t *typist) word(w string, caps bool) {
	if caps {
		w = applyCaps(t.rng, w, t.settings.CapitalizationProbability)
	}
	for _, ch := range w {
		if t.rng.Float64() < t.settings.TypoProbability {
			adj := Neighbors(ch)
			t.typeRune(adj[t.rng.Intn(len(adj))])
			if t.rng.Float64() < t.settings.CorrectionProbability {
				t.press(model.KeyBackspace, 0)
				t.typeRune(ch)
			}
			continue
		}
		t.typeRune(ch)
	}
}

func (t *typist) maybeSpace() {
	if t.rng.Float64() < t.settings.SpaceAfterWordProbability {
		t.typeRune(' ')
	}
}

// code types a snippet; a newline is Enter and the indentation after it a single Tab.
func (t *typist) code(snippet string) {
	runes := []rune(snippet)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch == '\n' {
			t.press(model.KeyEnter, 0)
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
				for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
					i++
				}
				t.press(model.KeyTab, 0)
			}
			continue
		}
		t.typeRune(ch)
	}
}
