package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/storage"
)

//go:embed queries/*.sql
var queryFS embed.FS

// DB is a SQLite implementation of the storage.ArtifactStore interface.
type DB struct {
	Conn *sql.DB // The raw database connection, exposed for extensibility.
}

// New creates a new SQLite database connection and ensures the schema is up
// to date. The special path ":memory:" opens an in-memory database.
func New(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{Conn: db}
	if err := instance.createSchema(); err != nil {
		_ = instance.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return instance, nil
}

// getQuery reads a raw SQL query from the embedded filesystem.
func getQuery(name string) (string, error) {
	b, err := queryFS.ReadFile("queries/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded query %s: %w", name, err)
	}
	return string(b), nil
}

func (db *DB) createSchema() error {
	query, err := getQuery("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Conn.Exec(query)
	return err
}

// Persist stores a finished artifact as JSON alongside its indexed columns
// and returns a "sqlite:<preservation_id>" primary ref. The secondary ref
// stays empty; a second backend would fill it.
func (db *DB) Persist(artifact *castkeep.BackupArtifact) (castkeep.ArtifactRefs, error) {
	query, err := getQuery("insert_artifact.sql")
	if err != nil {
		return castkeep.ArtifactRefs{}, err
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return castkeep.ArtifactRefs{}, fmt.Errorf("failed to encode artifact %s: %w", artifact.PreservationID, err)
	}
	_, err = db.Conn.Exec(query,
		artifact.PreservationID,
		artifact.Post.ID,
		artifact.Post.AuthorID,
		artifact.Verification.ContentHash,
		artifact.CreatedAt.Unix(),
		string(payload),
	)
	if err != nil {
		return castkeep.ArtifactRefs{}, fmt.Errorf("failed to insert artifact %s: %w", artifact.PreservationID, err)
	}
	return castkeep.ArtifactRefs{PrimaryRef: "sqlite:" + artifact.PreservationID}, nil
}

// ErrNotFound is returned when no artifact matches a lookup.
var ErrNotFound = errors.New("artifact not found")

func (db *DB) queryArtifact(queryName string, arg any) (*castkeep.BackupArtifact, error) {
	query, err := getQuery(queryName)
	if err != nil {
		return nil, err
	}
	var payload string
	err = db.Conn.QueryRow(query, arg).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	var artifact castkeep.BackupArtifact
	if err := json.Unmarshal([]byte(payload), &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &artifact, nil
}

// Retrieve loads an artifact by preservation id.
func (db *DB) Retrieve(preservationID string) (*castkeep.BackupArtifact, error) {
	return db.queryArtifact("get_artifact.sql", preservationID)
}

// Latest loads the most recently persisted artifact for a cast.
func (db *DB) Latest(castID string) (*castkeep.BackupArtifact, error) {
	return db.queryArtifact("latest_by_cast.sql", castID)
}

func (db *DB) listRecords(queryName string, arg any) ([]storage.ArtifactRecord, error) {
	query, err := getQuery(queryName)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []storage.ArtifactRecord
	for rows.Next() {
		var rec storage.ArtifactRecord
		var created int64
		if err := rows.Scan(&rec.PreservationID, &rec.CastID, &rec.AuthorID, &rec.ContentHash, &created); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during artifact row iteration: %w", err)
	}
	return records, nil
}

// ListByAuthor lists artifact records for an author, newest first.
func (db *DB) ListByAuthor(authorID string) ([]storage.ArtifactRecord, error) {
	return db.listRecords("list_by_author.sql", authorID)
}

// ListRecent lists the most recent artifact records.
func (db *DB) ListRecent(limit int) ([]storage.ArtifactRecord, error) {
	return db.listRecords("list_recent.sql", limit)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.Conn.Close()
}
