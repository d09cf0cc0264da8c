// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/quality-engine/internal/textsig"
)

// minTokenLen is the shortest token kept by the vectorizer.
const minTokenLen = 2

// Tokenize lowercases a description and splits it into runs of letters and
// digits, dropping single-character tokens.
func Tokenize(desc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(textsig.Normalize(desc)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// Terms expands tokens into the 1..ngramMax gram terms of a document. Stop
// words are removed before n-grams are formed.
func Terms(tokens []string, ngramMax int, stopWords bool) []string {
	if stopWords {
		kept := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if !IsStopWord(t) {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}
	if ngramMax < 1 {
		ngramMax = 1
	}

	terms := make([]string, 0, len(tokens)*ngramMax)
	terms = append(terms, tokens...)
	for n := 2; n <= ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
