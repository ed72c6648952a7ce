// Package export renders a design document for people to read.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/pkg/models"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts a format name or common alias. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Extension returns the usual file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatJSON:
		return "json"
	default:
		return "md"
	}
}

const defaultTitle = "Product Requirements Document"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render renders doc in the requested format. Topics are grouped by
// curriculum section; topics the curriculum does not know are listed last.
func Render(doc *models.Document, reg *curriculum.Registry, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown, "":
		return []byte(RenderMarkdown(doc, reg)), nil
	case FormatHTML:
		return RenderHTML(doc, reg)
	case FormatJSON:
		return RenderJSON(doc, reg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// RenderMarkdown renders doc as a Markdown product requirements document.
func RenderMarkdown(doc *models.Document, reg *curriculum.Registry) string {
	if doc.Len() == 0 {
		return "# No design information available\n\nStart a conversation to build your design document.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", titleOf(doc))
	fmt.Fprintf(&b, "**Version:** %d | **Last Updated:** %s\n\n", doc.Version, doc.LastUpdated().Format(time.RFC3339))

	var revised []entry
	for _, sec := range layout(doc, reg) {
		fmt.Fprintf(&b, "## %s\n\n", sec.Name)
		for _, t := range sec.Topics {
			fmt.Fprintf(&b, "### %s\n\n", t.Title)
			writeValue(&b, t.Record.Value)
			if len(t.Record.History) > 0 {
				revised = append(revised, t)
			}
		}
	}
	if len(revised) > 0 {
		b.WriteString("## Revision History\n\n")
		for _, t := range revised {
			for _, h := range t.Record.History {
				fmt.Fprintf(&b, "- **%s** (turn %d): %q\n", t.Title, h.SupersededBy, h.Value.String())
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderHTML renders doc as a standalone HTML page.
func RenderHTML(doc *models.Document, reg *curriculum.Registry) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(RenderMarkdown(doc, reg)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
    <style>
        body { font-family: 'Segoe UI', Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 40px 20px; color: #333; }
        h1, h2, h3 { color: #2c3e50; }
        blockquote { border-left: 4px solid #3498db; margin: 0; padding-left: 16px; color: #555; }
    </style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(titleOf(doc)), body.String())
	return out.Bytes(), nil
}

type jsonTopic struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Question   string            `json:"question,omitempty"`
	Value      models.Value      `json:"value"`
	Confidence float64           `json:"confidence"`
	Revised    bool              `json:"revised,omitempty"`
	Discovered bool              `json:"discovered,omitempty"`
	History    []models.Revision `json:"history,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type jsonSection struct {
	Name   string      `json:"name"`
	Topics []jsonTopic `json:"topics"`
}

type jsonDocument struct {
	Title     string        `json:"title"`
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Sections  []jsonSection `json:"sections"`
}

// RenderJSON renders doc as sectioned JSON.
func RenderJSON(doc *models.Document, reg *curriculum.Registry) ([]byte, error) {
	out := jsonDocument{
		Title:     titleOf(doc),
		UpdatedAt: doc.LastUpdated(),
		Sections:  []jsonSection{},
	}
	if doc != nil {
		out.Version = doc.Version
	}
	for _, sec := range layout(doc, reg) {
		js := jsonSection{Name: sec.Name}
		for _, t := range sec.Topics {
			r := t.Record
			js.Topics = append(js.Topics, jsonTopic{
				ID:         r.ID,
				Title:      t.Title,
				Question:   r.Question,
				Value:      r.Value,
				Confidence: r.Confidence,
				Revised:    r.Revised,
				Discovered: r.Discovered,
				History:    r.History,
				UpdatedAt:  r.UpdatedAt,
			})
		}
		out.Sections = append(out.Sections, js)
	}
	return json.MarshalIndent(out, "", "  ")
}

type entry struct {
	Title  string
	Record *models.TopicRecord
}

type section struct {
	Name   string
	Topics []entry
}

// additionalSection holds topics outside the curriculum.
const additionalSection = "Additional Notes"

// layout orders the document's non-empty topics by curriculum section. The
// title topic becomes the document heading and is not repeated.
func layout(doc *models.Document, reg *curriculum.Registry) []section {
	if doc.Len() == 0 {
		return nil
	}
	var out []section
	seen := make(map[string]bool)
	if reg != nil {
		for _, sec := range reg.Sections() {
			s := section{Name: sec.Name}
			if s.Name == "" {
				s.Name = "General"
			}
			for _, t := range sec.Topics {
				seen[t.ID] = true
				r, ok := doc.Get(t.ID)
				if !ok || r.Value.IsEmpty() || t.ID == "title" {
					continue
				}
				s.Topics = append(s.Topics, entry{Title: t.Title, Record: r})
			}
			if len(s.Topics) > 0 {
				out = append(out, s)
			}
		}
	}

	extra := section{Name: additionalSection}
	for _, id := range doc.TopicIDs() {
		if seen[id] || id == "title" {
			continue
		}
		r, _ := doc.Get(id)
		if r.Value.IsEmpty() {
			continue
		}
		extra.Topics = append(extra.Topics, entry{Title: curriculum.TitleFromID(id), Record: r})
	}
	if len(extra.Topics) > 0 {
		out = append(out, extra)
	}
	return out
}

func titleOf(doc *models.Document) string {
	if r, ok := doc.Get("title"); ok && strings.TrimSpace(r.Value.Text) != "" {
		return strings.TrimSpace(r.Value.Text)
	}
	return defaultTitle
}

func writeValue(b *strings.Builder, v models.Value) {
	if t := strings.TrimSpace(v.Text); t != "" {
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	if len(v.Fields) > 0 {
		for _, k := range sortedKeys(v.Fields) {
			fmt.Fprintf(b, "- **%s:** %s\n", curriculum.TitleFromID(k), v.Fields[k])
		}
		b.WriteString("\n")
	}
	if len(v.Items) > 0 {
		for _, item := range v.Items {
			fmt.Fprintf(b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
}

// SnapshotSource reads committed sessions.
type SnapshotSource interface {
	Snapshot(ctx context.Context, id string) (*models.Session, error)
}

// Curriculum supplies the current topic registry.
type Curriculum interface {
	Current() *curriculum.Registry
}

// Exporter renders the committed document of a session. It never mutates
// the session.
type Exporter struct {
	sessions   SnapshotSource
	curriculum Curriculum
}

// NewExporter creates an exporter.
func NewExporter(sessions SnapshotSource, cur Curriculum) *Exporter {
	return &Exporter{sessions: sessions, curriculum: cur}
}

// Export renders the latest committed document of session id.
func (e *Exporter) Export(ctx context.Context, id string, format Format) ([]byte, error) {
	sess, err := e.sessions.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return Render(sess.Document, e.curriculum.Current(), format)
}
