package extraction

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/pkg/models"
	"github.com/thebtf/designpartner/pkg/similarity"
)

type rawUpdate struct {
	Topic       string          `json:"topic"`
	Value       json.RawMessage `json:"value"`
	Fields      map[string]any  `json:"fields"`
	Items       []any           `json:"items"`
	Confidence  *float64        `json:"confidence"`
	Contradicts bool            `json:"contradicts"`
	Question    string          `json:"question"`
}

type rawResponse struct {
	Updates   []json.RawMessage `json:"updates"`
	Addressed []string          `json:"addressed"`
}

// defaultConfidence applies when the backend omits a confidence.
const defaultConfidence = 0.5

// ParseResponse parses backend output into proposed updates. Code fences and
// surrounding prose are tolerated. Individual malformed updates are dropped;
// an error is returned only when no JSON object can be recovered at all.
func ParseResponse(raw string) ([]models.ProposedUpdate, []string, error) {
	body, ok := extractObject(raw)
	if !ok {
		return nil, nil, fmt.Errorf("no JSON object in response")
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}

	updates := make([]models.ProposedUpdate, 0, len(resp.Updates))
	for _, item := range resp.Updates {
		var ru rawUpdate
		if err := json.Unmarshal(item, &ru); err != nil {
			continue
		}
		u, ok := ru.toUpdate()
		if !ok {
			continue
		}
		updates = append(updates, u)
	}

	addressed := make([]string, 0, len(resp.Addressed))
	seen := make(map[string]bool)
	for _, a := range resp.Addressed {
		id := curriculum.NormalizeID(a)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		addressed = append(addressed, id)
	}

	return updates, addressed, nil
}

func (ru rawUpdate) toUpdate() (models.ProposedUpdate, bool) {
	id := curriculum.NormalizeID(ru.Topic)
	if id == "" {
		return models.ProposedUpdate{}, false
	}

	value := models.Value{}
	if len(ru.Value) > 0 {
		var text string
		var list []any
		var obj map[string]any
		var other any
		switch {
		case json.Unmarshal(ru.Value, &text) == nil:
			value.Text = strings.TrimSpace(text)
		case json.Unmarshal(ru.Value, &list) == nil:
			value.Items = append(value.Items, stringsOf(list)...)
		case json.Unmarshal(ru.Value, &obj) == nil:
			value.Fields = fieldsOf(obj)
		case json.Unmarshal(ru.Value, &other) == nil:
			// Numbers and booleans.
			value.Text = scalar(other)
		}
	}
	if f := fieldsOf(ru.Fields); len(f) > 0 {
		if value.Fields == nil {
			value.Fields = f
		} else {
			for k, v := range f {
				value.Fields[k] = v
			}
		}
	}
	value.Items = similarity.DedupeItems(append(value.Items, stringsOf(ru.Items)...), similarity.DefaultThreshold)
	if len(value.Items) == 0 {
		value.Items = nil
	}
	if value.IsEmpty() {
		return models.ProposedUpdate{}, false
	}

	confidence := defaultConfidence
	if ru.Confidence != nil {
		confidence = clamp(*ru.Confidence)
	}

	return models.ProposedUpdate{
		TopicID:     id,
		Value:       value,
		Confidence:  confidence,
		Contradicts: ru.Contradicts,
		Question:    strings.TrimSpace(ru.Question),
	}, true
}

func stringsOf(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		s := scalar(v)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fieldsOf(obj map[string]any) map[string]string {
	if len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		key := curriculum.NormalizeID(k)
		s := scalar(v)
		if key == "" || s == "" {
			continue
		}
		out[key] = s
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	case []any:
		return strings.Join(stringsOf(t), ", ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		// Some backends answer on a percentage scale; anything just above 1
		// is an overshoot, not a percentage.
		if c >= 2 && c <= 100 {
			return c / 100
		}
		return 1
	default:
		return c
	}
}

// extractObject strips markdown code fences and returns the outermost
// balanced JSON object in s.
func extractObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
