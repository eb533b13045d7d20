package engine

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes accented letters into base letter plus combining
// marks, then drops the marks, so "café" normalizes to "cafe" before
// classification.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)

func stripAccents(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

type runeClass int

const (
	classOther runeClass = iota
	classAlpha
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsLetter(r):
		return classAlpha
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classOther
	}
}

// Tokenize splits raw text into normalized, stemmed, stop-word-filtered
// terms. It is applied identically to indexed text and query text; callers
// must never diverge on this point (see TestTokenizeSymmetry).
func Tokenize(text string) []string {

	if text == "" {
		return nil
	}

	if isNotASCII(text) {
		text = stripAccents(text)
	}

	var terms []string

	var run strings.Builder
	runClass := classOther

	flush := func() {
		if run.Len() == 0 {
			return
		}
		raw := run.String()
		run.Reset()

		if runClass == classDigit {
			terms = append(terms, raw)
			return
		}

		lower := strings.ToLower(raw)
		if isStopWord(lower) {
			return
		}

		stemmed := porter2.Stem(lower)
		if stemmed == "" {
			return
		}
		terms = append(terms, stemmed)
	}

	for _, r := range text {
		c := classify(r)
		if c == classOther {
			flush()
			continue
		}
		if c != runClass && run.Len() > 0 {
			flush()
		}
		runClass = c
		run.WriteRune(r)
	}
	flush()

	return terms
}

func isNotASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return true
		}
	}
	return false
}
