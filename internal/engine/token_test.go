package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeSymmetry(t *testing.T) {
	// The query tokenizer must be the exact same function as the index
	// tokenizer: a term written at index time has to come out identical
	// when the same surface text is later typed into a query.
	indexText := "The Quick Brown Fox jumps over the lazy dog's café"
	queryText := "quick brown fox café"

	indexTerms := Tokenize(indexText)
	queryTerms := Tokenize(queryText)

	indexSet := make(map[string]bool)
	for _, term := range indexTerms {
		indexSet[term] = true
	}
	for _, term := range queryTerms {
		assert.True(t, indexSet[term], "query term %q missing from index terms %v", term, indexTerms)
	}
}

func TestTokenizeStopWordsDropped(t *testing.T) {
	terms := Tokenize("the a an of and")
	assert.Empty(t, terms)
}

func TestTokenizeStemsVariants(t *testing.T) {
	terms := Tokenize("running runs runner")
	assert.NotEmpty(t, terms)
	first := terms[0]
	for _, term := range terms {
		assert.Equal(t, first, term, "expected porter2 to collapse run/running/runner variants")
	}
}

func TestTokenizeDigitsKeptWhole(t *testing.T) {
	terms := Tokenize("year 1993 report")
	assert.Contains(t, terms, "1993")
}

func TestTokenizeAccentFolding(t *testing.T) {
	a := Tokenize("café")
	b := Tokenize("cafe")
	assert.Equal(t, b, a)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Nil(t, Tokenize(""))
}
