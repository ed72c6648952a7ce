// Package bolt provides an embedded single-file session store on bbolt.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/thebtf/designpartner/pkg/models"
)

var (
	sessionsBucket  = []byte("sessions")
	documentsBucket = []byte("documents")
)

// Store keeps each session as one JSON value in the sessions bucket and its
// document history in a nested bucket per session under documents, keyed by
// big-endian version.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the bolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sessionsBucket, documentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func versionKey(v int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(v))
	return k
}

func getSession(tx *bolt.Tx, id string) (*models.Session, error) {
	v := tx.Bucket(sessionsBucket).Get([]byte(id))
	if v == nil {
		return nil, models.ErrSessionNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(v, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Document == nil {
		sess.Document = models.NewDocument()
	}
	if sess.Document.Topics == nil {
		sess.Document.Topics = make(map[string]*models.TopicRecord)
	}
	if sess.Coverage == nil {
		sess.Coverage = models.NewCoverageSet()
	}
	if sess.Coverage.Entries == nil {
		sess.Coverage.Entries = make(map[string]*models.CoverageEntry)
	}
	return &sess, nil
}

func putSession(tx *bolt.Tx, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := tx.Bucket(sessionsBucket).Put([]byte(sess.ID), data); err != nil {
		return err
	}
	if sess.Document == nil {
		return nil
	}
	docs, err := tx.Bucket(documentsBucket).CreateBucketIfNotExists([]byte(sess.ID))
	if err != nil {
		return err
	}
	key := versionKey(sess.Document.Version)
	if docs.Get(key) != nil {
		return nil
	}
	doc, err := json.Marshal(sess.Document)
	if err != nil {
		return fmt.Errorf("encode document %s@%d: %w", sess.ID, sess.Document.Version, err)
	}
	return docs.Put(key, doc)
}

// Create inserts a new session.
func (s *Store) Create(ctx context.Context, sess *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(sessionsBucket).Get([]byte(sess.ID)) != nil {
			return fmt.Errorf("create session %s: %w", sess.ID, models.ErrRevisionConflict)
		}
		return putSession(tx, sess)
	})
}

// Load reads the latest committed state of a session.
func (s *Store) Load(ctx context.Context, id string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		sess, err := getSession(tx, id)
		out = sess
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the stored session if sess.Revision directly follows it.
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		cur, err := getSession(tx, sess.ID)
		if err != nil {
			return err
		}
		if cur.Revision != sess.Revision-1 {
			return fmt.Errorf("save session %s at revision %d: %w", sess.ID, sess.Revision, models.ErrRevisionConflict)
		}
		if cur.Transcript.LastSeq() > sess.Transcript.LastSeq() {
			return fmt.Errorf("save session %s: transcript would shrink from %d to %d turns",
				sess.ID, cur.Transcript.LastSeq(), sess.Transcript.LastSeq())
		}
		return putSession(tx, sess)
	})
}

// Document returns a committed document version.
func (s *Store) Document(ctx context.Context, id string, version int64) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := models.NewDocument()
	err := s.db.View(func(tx *bolt.Tx) error {
		docs := tx.Bucket(documentsBucket).Bucket([]byte(id))
		if docs == nil {
			return models.ErrSessionNotFound
		}
		v := docs.Get(versionKey(version))
		if v == nil {
			return models.ErrSessionNotFound
		}
		return json.Unmarshal(v, doc)
	})
	if err != nil {
		return nil, err
	}
	if doc.Topics == nil {
		doc.Topics = make(map[string]*models.TopicRecord)
	}
	return doc, nil
}

// Delete removes a session and its document history.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(id)) == nil {
			return models.ErrSessionNotFound
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		docs := tx.Bucket(documentsBucket)
		if docs.Bucket([]byte(id)) != nil {
			return docs.DeleteBucket([]byte(id))
		}
		return nil
	})
}

// List returns session summaries, most recently updated first.
func (s *Store) List(ctx context.Context) ([]models.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.SessionSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, v []byte) error {
			var sess models.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				// Skip malformed entries instead of failing the whole listing
				return nil
			}
			sum := models.SessionSummary{
				ID:        sess.ID,
				Status:    sess.Status,
				Revision:  sess.Revision,
				Turns:     len(sess.Transcript),
				UpdatedAt: sess.UpdatedAt,
			}
			if sess.Document != nil {
				sum.DocumentVersion = sess.Document.Version
			}
			out = append(out, sum)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close closes the bolt file.
func (s *Store) Close() error {
	return s.db.Close()
}
