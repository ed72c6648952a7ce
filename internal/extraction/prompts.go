package extraction

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/pkg/models"
)

// SystemPrompt frames the backend as a design-document extractor.
const SystemPrompt = `You are the note-taker for a product design conversation. You read what the user just said and record structured facts about the product they are designing.

You never talk to the user. You only return JSON.`

// BuildSystemPrompt returns the system prompt.
func BuildSystemPrompt() string {
	return SystemPrompt
}

// BuildDocumentJSON renders the current document as compact topic -> value JSON.
func BuildDocumentJSON(doc *models.Document) string {
	view := make(map[string]any, doc.Len())
	for _, id := range doc.TopicIDs() {
		rec, _ := doc.Get(id)
		entry := map[string]any{"confidence": rec.Confidence}
		if rec.Value.Text != "" {
			entry["value"] = rec.Value.Text
		}
		if len(rec.Value.Fields) > 0 {
			entry["fields"] = rec.Value.Fields
		}
		if len(rec.Value.Items) > 0 {
			entry["items"] = rec.Value.Items
		}
		view[id] = entry
	}
	data, err := json.Marshal(view)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// BuildExtractionPrompt builds the instruction for one utterance.
func BuildExtractionPrompt(req *Request) string {
	var sb strings.Builder

	sb.WriteString("KNOWN TOPICS\n")
	sb.WriteString("============\n")
	for _, t := range req.Topics {
		status := "not yet covered"
		if e, ok := req.Coverage.Get(t.ID); ok {
			status = string(e.Completeness)
		}
		sb.WriteString(fmt.Sprintf("- %s (%s, %s): %s\n", t.ID, t.Shape, status, t.Question))
	}

	if discovered := discoveredTopics(req); len(discovered) > 0 {
		sb.WriteString(fmt.Sprintf("\nOther topics already recorded: %s\n", strings.Join(discovered, ", ")))
	}

	if req.CurrentTopic != "" {
		sb.WriteString(fmt.Sprintf("\nThe user was just asked about: %s\n", req.CurrentTopic))
	}

	sb.WriteString("\nUSER UTTERANCE\n")
	sb.WriteString("==============\n")
	sb.WriteString(truncate(req.Utterance, 4000))
	sb.WriteString("\n\n")

	sb.WriteString(`TASK
1. Identify every known topic the utterance addresses, including topics the user volunteers without being asked.
2. For each topic where the utterance states something concrete, propose a value and a confidence between 0 and 1 for how clearly the user stated it.
3. Set "contradicts" to true when the value conflicts with what the design document already records for that topic.
4. If the utterance clearly describes an important aspect of the product that matches no known topic, you may add it under a new snake_case topic id with a short "question" that would have elicited it.
5. List in "addressed" any topic the user spoke to without giving a usable value.
6. If the utterance is off-topic, return empty lists.

Use "value" for prose, "items" for lists, and "fields" for named attributes. Keep values short and in the user's own terms.

Respond with exactly this JSON shape and nothing else:
{"updates":[{"topic":"domain","value":"...","items":[],"fields":{},"confidence":0.9,"contradicts":false,"question":""}],"addressed":["topic_id"]}`)

	return sb.String()
}

func discoveredTopics(req *Request) []string {
	known := make(map[string]bool, len(req.Topics))
	for _, t := range req.Topics {
		known[t.ID] = true
	}
	var out []string
	for _, id := range req.Document.TopicIDs() {
		if !known[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// TopicsOf returns curriculum topics as plain values in curriculum order.
func TopicsOf(reg *curriculum.Registry) []curriculum.Topic {
	if reg == nil {
		return nil
	}
	all := reg.All()
	out := make([]curriculum.Topic, len(all))
	for i, t := range all {
		out[i] = *t
	}
	return out
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "... (truncated)"
}
