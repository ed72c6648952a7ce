package gorm

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/designpartner/pkg/models"
)

// formatTime renders t as the RFC3339 string stored beside epoch columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// fromEpoch restores a millisecond timestamp as UTC.
func fromEpoch(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func encodeDocument(doc *models.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeDocument(data string) (*models.Document, error) {
	doc := models.NewDocument()
	if data == "" {
		return doc, nil
	}
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, err
	}
	if doc.Topics == nil {
		doc.Topics = make(map[string]*models.TopicRecord)
	}
	return doc, nil
}

func toTurnRows(sessionID string, turns models.Transcript) []TranscriptTurn {
	rows := make([]TranscriptTurn, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, TranscriptTurn{
			SessionID: sessionID,
			Seq:       t.Seq,
			Role:      string(t.Role),
			Text:      t.Text,
			TopicID:   t.TopicID,
			At:        formatTime(t.At),
			AtEpoch:   t.At.UnixMilli(),
		})
	}
	return rows
}

func fromTurnRows(rows []TranscriptTurn) models.Transcript {
	if len(rows) == 0 {
		return nil
	}
	out := make(models.Transcript, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Turn{
			Seq:     r.Seq,
			Role:    models.Role(r.Role),
			Text:    r.Text,
			TopicID: r.TopicID,
			At:      fromEpoch(r.AtEpoch),
		})
	}
	return out
}
