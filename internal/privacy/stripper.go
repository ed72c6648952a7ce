// Package privacy removes content users mark as off the record before an
// utterance is stored or sent to a provider.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> spans.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// documentTagRegex matches <design_document>...</design_document> spans.
	// Providers receive the committed document inside these tags, so a user
	// must not be able to smuggle a forged one in through an utterance.
	documentTagRegex = regexp.MustCompile(`(?s)<design_document>.*?</design_document>`)

	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// StripDocumentTags removes embedded design document blocks from text.
func StripDocumentTags(text string) string {
	return documentTagRegex.ReplaceAllString(text, "")
}

// StripAllTags removes private spans and embedded document blocks.
func StripAllTags(text string) string {
	return StripDocumentTags(StripPrivateTags(text))
}

// IsEntirelyPrivate reports whether nothing remains once private spans are removed.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Clean prepares a user utterance for the transcript: tags are stripped,
// runs of spaces left behind are collapsed and the result is trimmed.
func Clean(text string) string {
	text = StripAllTags(text)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
