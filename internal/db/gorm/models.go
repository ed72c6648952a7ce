package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/designpartner/pkg/models"
)

// GORM Models

// DesignSession is the session header row. Revision is the optimistic
// concurrency token: every successful save increments it by one.
type DesignSession struct {
	ID              int64              `gorm:"primaryKey;autoIncrement"`
	SessionID       string             `gorm:"size:64;uniqueIndex;not null"`
	Revision        int64              `gorm:"not null;default:0"`
	Status          string             `gorm:"size:16;check:status IN ('active', 'complete');default:'active';index;not null"`
	CurrentTopic    string             `gorm:"size:128"`
	Coverage        models.CoverageSet `gorm:"type:text"` // JSON object
	DocumentVersion int64              `gorm:"not null;default:0"`
	CreatedAt       string             `gorm:"size:40;not null"`
	CreatedAtEpoch  int64              `gorm:"not null"`
	UpdatedAt       string             `gorm:"size:40;not null"`
	UpdatedAtEpoch  int64              `gorm:"index:idx_design_sessions_updated,sort:desc;not null"`
}

func (DesignSession) TableName() string { return "design_sessions" }

// BeforeCreate hook to ensure timestamps are set.
func (s *DesignSession) BeforeCreate(tx *gorm.DB) error {
	now := models.Now()
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = now.UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.UnixMilli(s.CreatedAtEpoch).UTC().Format(time.RFC3339)
	}
	if s.UpdatedAtEpoch == 0 {
		s.UpdatedAtEpoch = s.CreatedAtEpoch
	}
	if s.UpdatedAt == "" {
		s.UpdatedAt = time.UnixMilli(s.UpdatedAtEpoch).UTC().Format(time.RFC3339)
	}
	return nil
}

// TranscriptTurn is one append-only transcript row.
type TranscriptTurn struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;uniqueIndex:idx_transcript_session_seq,priority:1;not null"`
	Seq       int    `gorm:"uniqueIndex:idx_transcript_session_seq,priority:2;not null"`
	Role      string `gorm:"size:16;check:role IN ('user', 'assistant');not null"`
	Text      string `gorm:"type:text;not null"`
	TopicID   string `gorm:"size:128"`
	At        string `gorm:"size:40;not null"`
	AtEpoch   int64  `gorm:"not null"`
}

func (TranscriptTurn) TableName() string { return "transcript_turns" }

// BeforeCreate hook to ensure timestamps are set.
func (t *TranscriptTurn) BeforeCreate(tx *gorm.DB) error {
	if t.AtEpoch == 0 {
		t.AtEpoch = models.Now().UnixMilli()
	}
	if t.At == "" {
		t.At = time.UnixMilli(t.AtEpoch).UTC().Format(time.RFC3339)
	}
	return nil
}

// DocumentVersion stores one committed design document version as JSON.
// Rows are never updated, so the table doubles as the version history.
type DocumentVersion struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"size:64;uniqueIndex:idx_document_session_version,priority:1;not null"`
	Version        int64  `gorm:"uniqueIndex:idx_document_session_version,priority:2;not null"`
	DocumentJSON   string `gorm:"type:text;not null"`
	Topics         int    `gorm:"not null;default:0"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (DocumentVersion) TableName() string { return "document_versions" }

// BeforeCreate hook to ensure timestamps are set.
func (d *DocumentVersion) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAtEpoch == 0 {
		d.CreatedAtEpoch = models.Now().UnixMilli()
	}
	return nil
}
