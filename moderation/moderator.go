// Package moderation censors forbidden words in public chat messages and
// comments, and tags messages with their language.
package moderation

import (
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator is safe for concurrent use once built.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// folded is a lowercase, leet-free text without noise. positions[i] is the
// index in the source runes of folded rune i.
type folded struct {
	runes     []rune
	positions []int
}

// NewModerator builds the automaton from the folded censored words.
// Words made only of noise are ignored. An empty dictionary censors nothing.
func NewModerator(censoredWords []string, replacement rune, log *slog.Logger) (Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		f := fold([]rune(word))
		if len(f.runes) == 0 {
			log.Debug("Ignoring censored word without letters", "word", word)
			continue
		}
		patterns = append(patterns, f.runes)
	}
	if len(patterns) == 0 {
		return Moderator{replacement: replacement, log: log}, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: machine, replacement: replacement, log: log}, nil
}

// Censor masks every forbidden word, noise included, leaving the rest of the text untouched.
// It returns the masked text and the matched words in order of appearance.
func (m Moderator) Censor(text string) (string, []string) {
	if m.matcher == nil {
		return text, nil
	}
	source := []rune(text)
	f := fold(source)
	if len(f.runes) == 0 {
		return text, nil
	}

	var matched []string
	for _, term := range m.matcher.MultiPatternSearch(f.runes, false) {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(f.positions) {
			continue
		}
		for i := f.positions[term.Pos]; i <= f.positions[end-1]; i++ {
			source[i] = m.replacement
		}
		matched = append(matched, string(term.Word))
	}
	if len(matched) == 0 {
		return text, nil
	}

	m.log.Debug("Content censored", "words", len(matched))
	return string(source), matched
}

// DetectLanguage returns the ISO 639-1 code of the text language, or "" when unsure.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

func fold(source []rune) folded {
	f := folded{
		runes:     make([]rune, 0, len(source)),
		positions: make([]int, 0, len(source)),
	}
	for i, r := range source {
		r = unleet(r)
		if isNoise(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.positions = append(f.positions, i)
	}
	return f
}

// unleet maps common leet speak characters back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
