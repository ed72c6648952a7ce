// Package session manages the lifecycle and persistence of design sessions.
package session

import (
	"context"

	"github.com/thebtf/designpartner/pkg/models"
)

// Store persists the (transcript, document, coverage) triple of a session.
// Implementations must make Save atomic over the triple and reject a save
// whose revision does not directly follow the stored one.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.SessionSummary, error)
	// Document returns a historical document version.
	Document(ctx context.Context, id string, version int64) (*models.Document, error)
	Close() error
}
