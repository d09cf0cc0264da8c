// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textsig turns raw catalog descriptions into the word count and
// percentile text score signals. A missing description is a quality signal,
// not invalid input: it scores 0 words and the minimum rank.
package textsig

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/quality-engine/internal/stats"
)

// Normalize reduces HTML markup in a description to its text content. Plain
// text is returned unchanged.
func Normalize(desc string) string {
	if !looksLikeMarkup(desc) {
		return desc
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return desc
	}
	// Block-level tags carry no whitespace of their own in Text().
	doc.Find("br, p, li, div, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return doc.Text()
}

func looksLikeMarkup(s string) bool {
	i := strings.IndexByte(s, '<')
	if i < 0 || i+1 >= len(s) {
		return false
	}
	next := rune(s[i+1])
	return (unicode.IsLetter(next) || next == '/' || next == '!') && strings.IndexByte(s[i:], '>') > 0
}

// Tokens splits a description on whitespace and punctuation.
func Tokens(desc string) []string {
	return strings.FieldsFunc(Normalize(desc), isSeparator)
}

// WordCount returns the number of tokens in desc. Empty input yields 0.
func WordCount(desc string) int {
	return len(Tokens(desc))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// Table is the frozen training-corpus word count distribution.
type Table struct {
	Counts stats.RankTable `json:"counts" yaml:"counts"`
}

// FitTable freezes the word count distribution of a training corpus.
func FitTable(wordCounts []int) Table {
	values := make([]float64, len(wordCounts))
	for i, wc := range wordCounts {
		values[i] = float64(wc)
	}
	return Table{Counts: stats.NewRankTable(values)}
}

// Score returns the percentile rank of wordCount within the frozen
// distribution. Zero words always scores 0.
func (t Table) Score(wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return t.Counts.Rank(float64(wordCount))
}
