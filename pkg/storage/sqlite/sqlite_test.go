package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castkeep "github.com/castkeep/castkeep/internal"
)

func testArtifact(preservationID, castID, authorID string, createdAt time.Time) *castkeep.BackupArtifact {
	return &castkeep.BackupArtifact{
		PreservationID: preservationID,
		Post: castkeep.Post{
			ID:        castID,
			AuthorID:  authorID,
			Text:      "gm",
			Timestamp: createdAt.Add(-time.Hour),
		},
		Verification: castkeep.Verification{ContentHash: "hash-" + preservationID, ComputedAt: createdAt},
		Completeness: castkeep.Completeness{Text: true},
		CreatedAt:    createdAt,
	}
}

func TestPersistAndRetrieve(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	artifact := testArtifact("p-1", "0xabc", "fid:1", now)

	refs, err := db.Persist(artifact)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:p-1", refs.PrimaryRef)
	assert.Empty(t, refs.SecondaryRef)

	loaded, err := db.Retrieve("p-1")
	require.NoError(t, err)
	assert.Equal(t, artifact.Post.ID, loaded.Post.ID)
	assert.Equal(t, artifact.Verification.ContentHash, loaded.Verification.ContentHash)
	assert.True(t, loaded.Completeness.Text)
}

func TestRetrieveMissing(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Retrieve("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestPicksNewestForCast(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err = db.Persist(testArtifact("p-old", "0xabc", "fid:1", base))
	require.NoError(t, err)
	_, err = db.Persist(testArtifact("p-new", "0xabc", "fid:1", base.Add(time.Hour)))
	require.NoError(t, err)

	latest, err := db.Latest("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "p-new", latest.PreservationID)
}

func TestListByAuthorAndRecent(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err = db.Persist(testArtifact("p-1", "0xaaa", "fid:1", base))
	require.NoError(t, err)
	_, err = db.Persist(testArtifact("p-2", "0xbbb", "fid:1", base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = db.Persist(testArtifact("p-3", "0xccc", "fid:2", base.Add(2*time.Minute)))
	require.NoError(t, err)

	byAuthor, err := db.ListByAuthor("fid:1")
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "p-2", byAuthor[0].PreservationID)
	assert.Equal(t, "p-1", byAuthor[1].PreservationID)

	recent, err := db.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "p-3", recent[0].PreservationID)
	assert.Equal(t, "p-2", recent[1].PreservationID)
}
