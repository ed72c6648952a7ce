package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/designpartner/pkg/models"
)

// SessionStore persists design sessions across the design_sessions,
// transcript_turns and document_versions tables.
type SessionStore struct {
	store *Store
}

// NewSessionStore creates a session store on top of an open Store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store}
}

// Create inserts a new session. It fails with models.ErrRevisionConflict if
// the identifier is already taken.
func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DesignSession{}).Where("session_id = ?", sess.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("create session %s: %w", sess.ID, models.ErrRevisionConflict)
		}

		row := &DesignSession{
			SessionID:       sess.ID,
			Revision:        sess.Revision,
			Status:          string(sess.Status),
			CurrentTopic:    sess.CurrentTopic,
			Coverage:        *sess.Coverage.Clone(),
			DocumentVersion: sess.Document.Version,
			CreatedAt:       formatTime(sess.CreatedAt),
			CreatedAtEpoch:  sess.CreatedAt.UnixMilli(),
			UpdatedAt:       formatTime(sess.UpdatedAt),
			UpdatedAtEpoch:  sess.UpdatedAt.UnixMilli(),
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if rows := toTurnRows(sess.ID, sess.Transcript); len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return insertDocument(tx, sess.ID, sess.Document)
	})
}

// Load reads the latest committed state of a session.
func (s *SessionStore) Load(ctx context.Context, id string) (*models.Session, error) {
	var out *models.Session
	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DesignSession
		if err := tx.Where("session_id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrSessionNotFound
			}
			return err
		}

		var turns []TranscriptTurn
		if err := tx.Where("session_id = ?", id).Order("seq ASC").Find(&turns).Error; err != nil {
			return err
		}

		var docRow DocumentVersion
		doc := models.NewDocument()
		err := tx.Where("session_id = ? AND version = ?", id, row.DocumentVersion).First(&docRow).Error
		switch {
		case err == nil:
			if doc, err = decodeDocument(docRow.DocumentJSON); err != nil {
				return fmt.Errorf("decode document %s@%d: %w", id, row.DocumentVersion, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Sessions created before their first turn have no document row.
		default:
			return err
		}

		coverage := row.Coverage.Clone()
		out = &models.Session{
			ID:           row.SessionID,
			Revision:     row.Revision,
			Status:       models.SessionStatus(row.Status),
			CurrentTopic: row.CurrentTopic,
			Transcript:   fromTurnRows(turns),
			Document:     doc,
			Coverage:     coverage,
			CreatedAt:    fromEpoch(row.CreatedAtEpoch),
			UpdatedAt:    fromEpoch(row.UpdatedAtEpoch),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save atomically commits the transcript, document and coverage of sess.
// sess.Revision must be exactly one more than the stored revision.
func (s *SessionStore) Save(ctx context.Context, sess *models.Session) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DesignSession{}).
			Where("session_id = ? AND revision = ?", sess.ID, sess.Revision-1).
			Updates(map[string]any{
				"revision":         sess.Revision,
				"status":           string(sess.Status),
				"current_topic":    sess.CurrentTopic,
				"coverage":         *sess.Coverage.Clone(),
				"document_version": sess.Document.Version,
				"updated_at":       formatTime(sess.UpdatedAt),
				"updated_at_epoch": sess.UpdatedAt.UnixMilli(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&DesignSession{}).Where("session_id = ?", sess.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrSessionNotFound
			}
			return fmt.Errorf("save session %s at revision %d: %w", sess.ID, sess.Revision, models.ErrRevisionConflict)
		}

		var lastSeq int
		if err := tx.Model(&TranscriptTurn{}).
			Where("session_id = ?", sess.ID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&lastSeq).Error; err != nil {
			return err
		}
		if lastSeq > sess.Transcript.LastSeq() {
			return fmt.Errorf("save session %s: transcript would shrink from %d to %d turns", sess.ID, lastSeq, sess.Transcript.LastSeq())
		}
		if rows := toTurnRows(sess.ID, sess.Transcript.After(lastSeq)); len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		return insertDocument(tx, sess.ID, sess.Document)
	})
}

// insertDocument stores a document version once; re-saving an existing
// version is a no-op since versions are immutable.
func insertDocument(tx *gorm.DB, sessionID string, doc *models.Document) error {
	if doc == nil {
		return nil
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	row := &DocumentVersion{
		SessionID:    sessionID,
		Version:      doc.Version,
		DocumentJSON: data,
		Topics:       doc.Len(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// Document returns a specific committed document version.
func (s *SessionStore) Document(ctx context.Context, id string, version int64) (*models.Document, error) {
	var row DocumentVersion
	err := s.store.DB.WithContext(ctx).
		Where("session_id = ? AND version = ?", id, version).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	return decodeDocument(row.DocumentJSON)
}

// Delete removes a session and all of its rows.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("session_id = ?", id).Delete(&DesignSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrSessionNotFound
		}
		if err := tx.Where("session_id = ?", id).Delete(&TranscriptTurn{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", id).Delete(&DocumentVersion{}).Error
	})
}

// List returns session summaries, most recently updated first.
func (s *SessionStore) List(ctx context.Context) ([]models.SessionSummary, error) {
	var rows []DesignSession
	if err := s.store.DB.WithContext(ctx).
		Order("updated_at_epoch DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	type turnCount struct {
		SessionID string
		N         int
	}
	var counts []turnCount
	if err := s.store.DB.WithContext(ctx).
		Model(&TranscriptTurn{}).
		Select("session_id, COUNT(*) AS n").
		Group("session_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.SessionID] = c.N
	}

	out := make([]models.SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SessionSummary{
			ID:              r.SessionID,
			Status:          models.SessionStatus(r.Status),
			Revision:        r.Revision,
			DocumentVersion: r.DocumentVersion,
			Turns:           byID[r.SessionID],
			UpdatedAt:       fromEpoch(r.UpdatedAtEpoch),
		})
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.store.Close()
}
