// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"regexp"
	"strings"
)

// UnknownProduct is the name given to descriptions with no "Item Name:" line.
const UnknownProduct = "Unknown Product"

var itemNamePattern = regexp.MustCompile(`Item Name:[ \t]*([^\n]+)`)

// ProductName extracts the value of the "Item Name:" line of a description.
func ProductName(desc string) string {
	m := itemNamePattern.FindStringSubmatch(desc)
	if m == nil {
		return UnknownProduct
	}
	if name := strings.TrimSpace(m[1]); name != "" {
		return name
	}
	return UnknownProduct
}

// categoryKeywords is checked in order; the first category with a keyword
// contained in the product name wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Electronics", []string{"phone", "laptop", "tablet", "headphone", "camera", "tv", "electronics"}},
	{"Clothing", []string{"shirt", "pants", "dress", "shoes", "clothing", "jacket"}},
	{"Home & Kitchen", []string{"kitchen", "home", "furniture", "decor", "bedding"}},
	{"Books", []string{"book", "novel", "guide", "manual"}},
	{"Toys & Games", []string{"toy", "game", "puzzle", "doll"}},
	{"Beauty & Personal Care", []string{"beauty", "cosmetic", "skincare", "makeup", "shampoo"}},
	{"Sports & Outdoors", []string{"sports", "fitness", "outdoor", "camping", "bike"}},
	{"Food & Grocery", []string{"food", "snack", "sauce", "beverage", "grocery"}},
}

// Category infers a display category from keywords in the product name.
func Category(desc string) string {
	name := strings.ToLower(ProductName(desc))
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(name, kw) {
				return c.category
			}
		}
	}
	return "Other"
}
