package tui

import (
	"strings"
	"testing"
)

func TestBuildStyledRunesHighlightsRecent(t *testing.T) {
	runes := buildStyledRunes([]rune("abc"), 1)
	if len(runes) != 4 {
		t.Fatalf("expected 3 runes plus cursor, got %d", len(runes))
	}
	if runes[0].s != typedStyle.Render("a") {
		t.Fatalf("expected typed style for first rune")
	}
	if runes[2].s != recentStyle.Render("c") {
		t.Fatalf("expected recent style for last rune")
	}
	if runes[3].s != cursorStyle.Render(" ") {
		t.Fatalf("expected trailing cursor cell")
	}
}

func TestBuildStyledRunesControlCharacters(t *testing.T) {
	runes := buildStyledRunes([]rune("a\n\tb"), 0)
	if !runes[1].newline {
		t.Fatalf("expected newline marker")
	}
	if runes[2].width != tabWidth || !runes[2].isSpace {
		t.Fatalf("expected tab to expand to %d spaces", tabWidth)
	}
}

func TestWrapStyledRunesBreaksAtSpaces(t *testing.T) {
	runes := []styledRune{}
	for _, r := range "one two three" {
		runes = append(runes, styledRune{s: string(r), width: 1, isSpace: r == ' '})
	}
	got := wrapStyledRunes(runes, 8)
	if got != "one two\nthree" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestWrapStyledRunesHardBreaks(t *testing.T) {
	runes := []styledRune{
		{s: "a", width: 1},
		{newline: true},
		{s: "b", width: 1},
	}
	if got := wrapStyledRunes(runes, 10); got != "a\nb" {
		t.Fatalf("unexpected wrap: %q", got)
	}
	if got := wrapStyledRunes(runes, 0); got != "a\nb" {
		t.Fatalf("unexpected unwrapped render: %q", got)
	}
}

func TestWrapStyledRunesSplitsLongWords(t *testing.T) {
	runes := []styledRune{}
	for _, r := range "abcdef" {
		runes = append(runes, styledRune{s: string(r), width: 1})
	}
	if got := wrapStyledRunes(runes, 4); got != "abcd\nef" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestTailLines(t *testing.T) {
	s := strings.Join([]string{"1", "2", "3", "4"}, "\n")
	if got := tailLines(s, 2); got != "3\n4" {
		t.Fatalf("unexpected tail: %q", got)
	}
	if got := tailLines(s, 10); got != s {
		t.Fatalf("unexpected tail: %q", got)
	}
}
