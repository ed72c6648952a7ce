// Package similarity provides text similarity and equivalence utilities.
package similarity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thebtf/designpartner/pkg/models"
)

// DefaultThreshold is the Jaccard score at or above which two texts are
// treated as restatements of the same fact.
const DefaultThreshold = 0.8

// Equivalent reports whether two topic values express the same fact.
// Text is compared by normalised exact match and then by Jaccard similarity of
// content terms. Structured fields are compared per key and list items as sets.
func Equivalent(a, b models.Value, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if !TextEquivalent(a.Text, b.Text, threshold) {
		return false
	}
	if !fieldsEquivalent(a.Fields, b.Fields, threshold) {
		return false
	}
	return itemsEquivalent(a.Items, b.Items, threshold)
}

// Identical reports whether two values are the same after normalisation:
// equal text, equal fields and the same items in any order.
func Identical(a, b models.Value) bool {
	if Normalize(a.Text) != Normalize(b.Text) {
		return false
	}
	fa, fb := normalizeFields(a.Fields), normalizeFields(b.Fields)
	if len(fa) != len(fb) {
		return false
	}
	for k, va := range fa {
		vb, ok := fb[k]
		if !ok || Normalize(va) != Normalize(vb) {
			return false
		}
	}
	ia, ib := normalizedItems(a.Items), normalizedItems(b.Items)
	if len(ia) != len(ib) {
		return false
	}
	for i := range ia {
		if ia[i] != ib[i] {
			return false
		}
	}
	return true
}

func normalizedItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range nonEmpty(items) {
		out = append(out, Normalize(item))
	}
	sort.Strings(out)
	return out
}

// TextEquivalent compares two free-text values.
func TextEquivalent(a, b string, threshold float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	ta, tb := ExtractTerms(a), ExtractTerms(b)
	// Texts made only of stop words carry no comparable terms.
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	// A changed number or a flipped negation is a different fact however
	// many words the texts share.
	if !sameSubset(ta, tb, isNumeric) || !sameSubset(ta, tb, isNegator) {
		return false
	}
	return JaccardSimilarity(ta, tb) >= threshold
}

// sameSubset reports whether the terms selected by keep are equal in a and b.
func sameSubset(a, b map[string]bool, keep func(string) bool) bool {
	for term := range a {
		if keep(term) && !b[term] {
			return false
		}
	}
	for term := range b {
		if keep(term) && !a[term] {
			return false
		}
	}
	return true
}

func fieldsEquivalent(a, b map[string]string, threshold float64) bool {
	na, nb := normalizeFields(a), normalizeFields(b)
	if len(na) != len(nb) {
		return false
	}
	for k, va := range na {
		vb, ok := nb[k]
		if !ok || !TextEquivalent(va, vb, threshold) {
			return false
		}
	}
	return true
}

func normalizeFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[Normalize(k)] = v
	}
	return out
}

func itemsEquivalent(a, b []string, threshold float64) bool {
	a, b = nonEmpty(a), nonEmpty(b)
	if len(a) != len(b) {
		return false
	}
	return coveredBy(a, b, threshold) && coveredBy(b, a, threshold)
}

// coveredBy reports whether every item in xs has an equivalent in ys.
func coveredBy(xs, ys []string, threshold float64) bool {
	for _, x := range xs {
		found := false
		for _, y := range ys {
			if TextEquivalent(x, y, threshold) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// DedupeItems drops list items that restate an earlier item. The first
// occurrence of each cluster is kept, preserving input order.
func DedupeItems(items []string, threshold float64) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		if IsSimilarToAny(item, result, threshold) {
			continue
		}
		result = append(result, strings.TrimSpace(item))
	}
	return result
}

// IsSimilarToAny checks if text is equivalent to any of the existing texts.
func IsSimilarToAny(text string, existing []string, threshold float64) bool {
	for _, e := range existing {
		if TextEquivalent(text, e, threshold) {
			return true
		}
	}
	return false
}

// Normalize lowercases text, drops punctuation and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// ExtractTerms tokenizes text into a set of meaningful terms.
func ExtractTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	addTerms(terms, text)
	return terms
}

// ExtractValueTerms extracts terms from every part of a value.
func ExtractValueTerms(v models.Value) map[string]bool {
	terms := make(map[string]bool)
	addTerms(terms, v.Text)
	for _, f := range v.Fields {
		addTerms(terms, f)
	}
	for _, item := range v.Items {
		addTerms(terms, item)
	}
	return terms
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true,
}

var negators = map[string]bool{
	"no": true, "not": true, "never": true, "none": true, "nor": true,
	"neither": true, "without": true, "cannot": true, "nothing": true,
	"don": true, "doesn": true, "isn": true, "aren": true, "won": true,
	"dont": true, "doesnt": true, "isnt": true, "arent": true, "wont": true,
}

func isNegator(term string) bool { return negators[term] }

func isNumeric(term string) bool {
	return strings.IndexFunc(term, unicode.IsDigit) >= 0
}

// addTerms tokenizes text and adds meaningful terms to the set. Numbers and
// negators are kept whatever their length.
func addTerms(terms map[string]bool, text string) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	for _, word := range words {
		switch {
		case isNumeric(word), isNegator(word):
			terms[word] = true
		case utf8.RuneCountInString(word) >= 3 && !stopWords[word]:
			terms[word] = true
		}
	}
}

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
