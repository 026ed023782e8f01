package storage

import (
	"time"

	castkeep "github.com/castkeep/castkeep/internal"
)

// ArtifactRecord is a single artifact row without its payload, as listed
// by index queries.
type ArtifactRecord struct {
	// PreservationID is the unique identifier of the backup.
	PreservationID string
	// CastID is the identifier of the backed-up cast.
	CastID string
	// AuthorID is the identifier of the cast's author.
	AuthorID string
	// ContentHash is the artifact's verification digest.
	ContentHash string
	// CreatedAt is when the artifact was persisted.
	CreatedAt time.Time
}

// ArtifactStore defines the interface for artifact persistence.
// This allows for different database backends to be used with the
// orchestrator.
type ArtifactStore interface {
	// Persist stores a finished artifact and returns its storage refs.
	// Backends with a single address leave SecondaryRef empty.
	Persist(artifact *castkeep.BackupArtifact) (castkeep.ArtifactRefs, error)
	// Retrieve loads an artifact by preservation id.
	Retrieve(preservationID string) (*castkeep.BackupArtifact, error)
	// Latest loads the most recently persisted artifact for a cast.
	Latest(castID string) (*castkeep.BackupArtifact, error)
	// ListByAuthor lists artifact records for an author, newest first.
	ListByAuthor(authorID string) ([]ArtifactRecord, error)
	// ListRecent lists the most recent artifact records.
	ListRecent(limit int) ([]ArtifactRecord, error)
	// Close closes the store.
	Close() error
}
