package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/logging"
	"github.com/castkeep/castkeep/pkg/preserve"
	"github.com/castkeep/castkeep/pkg/storage"
	"github.com/castkeep/castkeep/pkg/thread"
)

type fakeSource struct {
	posts map[string]*castkeep.Post
}

func (f *fakeSource) Fetch(_ context.Context, castID string) (*castkeep.Post, error) {
	post, ok := f.posts[castID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", castkeep.ErrCastUnavailable, castID)
	}
	clone := *post
	clone.Embeds = append([]castkeep.Embed(nil), post.Embeds...)
	return &clone, nil
}

type fakeMedia struct {
	failURLs map[string]error
	fatal    error
}

func (f *fakeMedia) Preserve(_ context.Context, url string) (*castkeep.PreservedMedia, error) {
	if url == "" {
		return nil, nil
	}
	if err, ok := f.failURLs[url]; ok {
		return nil, err
	}
	return &castkeep.PreservedMedia{
		OriginalURL: url,
		Ref:         castkeep.StorageRef{Primary: "sha256:" + url},
		SizeBytes:   int64(len(url)),
	}, nil
}

func (f *fakeMedia) PreserveMany(ctx context.Context, urls []string) ([]preserve.Result, error) {
	if f.fatal != nil {
		return nil, f.fatal
	}
	results := make([]preserve.Result, len(urls))
	for i, url := range urls {
		results[i].URL = url
		results[i].Media, results[i].Err = f.Preserve(ctx, url)
	}
	return results, nil
}

type fakeResolver struct {
	out thread.Context
}

func (f *fakeResolver) BuildContext(context.Context, string) thread.Context {
	return f.out
}

type fakeFrames struct {
	frames map[string]*castkeep.FrameData
	err    error
}

func (f *fakeFrames) ExtractFrame(_ context.Context, url string) (*castkeep.FrameData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.frames[url], nil
}

type memStore struct {
	mu        sync.Mutex
	persisted []*castkeep.BackupArtifact
	fail      error
}

func (s *memStore) Persist(artifact *castkeep.BackupArtifact) (castkeep.ArtifactRefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return castkeep.ArtifactRefs{}, s.fail
	}
	s.persisted = append(s.persisted, artifact)
	return castkeep.ArtifactRefs{PrimaryRef: "sqlite:" + artifact.PreservationID}, nil
}

func (s *memStore) Retrieve(string) (*castkeep.BackupArtifact, error) { return nil, nil }
func (s *memStore) Latest(string) (*castkeep.BackupArtifact, error)  { return nil, nil }
func (s *memStore) ListByAuthor(string) ([]storage.ArtifactRecord, error) {
	return nil, nil
}
func (s *memStore) ListRecent(int) ([]storage.ArtifactRecord, error) { return nil, nil }
func (s *memStore) Close() error                                     { return nil }

func richPost() *castkeep.Post {
	return &castkeep.Post{
		ID:           "0xabc",
		AuthorID:     "fid:1",
		AuthorHandle: "alice",
		Text:         "gm",
		Embeds: []castkeep.Embed{
			{URL: "https://example.com/a.png", Kind: castkeep.EmbedImage},
			{URL: "https://app.example.com/frames/poll", Kind: castkeep.EmbedFrame},
		},
	}
}

func testOrchestrator(source *fakeSource, media *fakeMedia, resolver *fakeResolver, frames *fakeFrames, store *memStore, rec *logging.Recorder) *Orchestrator {
	o := New(source, media, resolver, frames, store, rec)
	seq := 0
	o.NewID = func() string {
		seq++
		return fmt.Sprintf("p-%d", seq)
	}
	return o
}

func fullContext() thread.Context {
	return thread.Context{
		Thread: &castkeep.ThreadData{
			ThreadID:   "0xroot",
			ReplyChain: []castkeep.ReplyRef{{ID: "0x1", AuthorID: "fid:2", Handle: "bob"}},
			Participants: []castkeep.Participant{
				{AuthorID: "fid:2", Handle: "bob", ReplyCount: 1},
			},
		},
		Parent:   &castkeep.ParentRef{ID: "0xparent"},
		Profiles: []castkeep.Profile{{ID: "fid:9", Handle: "carol"}},
	}
}

func TestCreateBackup(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{}
	frames := &fakeFrames{frames: map[string]*castkeep.FrameData{
		"https://app.example.com/frames/poll": {
			FrameURL: "https://app.example.com/frames/poll",
			Image:    "https://img.example.com/f.png",
			Version:  "vNext",
		},
	}}
	o := testOrchestrator(
		&fakeSource{posts: map[string]*castkeep.Post{"0xabc": richPost()}},
		&fakeMedia{},
		&fakeResolver{out: fullContext()},
		frames, store, rec,
	)

	artifact, err := o.CreateBackup(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.Equal(t, "p-1", artifact.PreservationID)
	assert.Equal(t, "sqlite:p-1", artifact.Storage.PrimaryRef)
	require.Len(t, store.persisted, 1)

	// Every facet produced data.
	assert.Equal(t, castkeep.Completeness{
		Text: true, Media: true, Thread: true, Frames: true, Profiles: true,
	}, artifact.Completeness)

	// Media attached to the embeds that own it.
	require.NotNil(t, artifact.Post.Embeds[0].PreservedMedia)
	require.NotNil(t, artifact.Post.Embeds[1].PreservedMedia)

	// The frame capture carries its preserved image.
	require.Len(t, artifact.Frames, 1)
	require.NotNil(t, artifact.Frames[0].PreservedImage)
	require.NotNil(t, artifact.Post.Embeds[1].Frame)

	// The hash covers identity fields and verifies against the stored post.
	assert.Equal(t, castkeep.ContentHash(&artifact.Post), artifact.Verification.ContentHash)

	require.Len(t, rec.Named("artifact_persisted"), 1)
	assert.Empty(t, rec.Named("backup_failed"))
	assert.Len(t, rec.Named("facet_completed"), 3)
}

func TestCreateBackupFetchFailureIsFatal(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{}
	o := testOrchestrator(&fakeSource{}, &fakeMedia{}, &fakeResolver{}, &fakeFrames{}, store, rec)

	artifact, err := o.CreateBackup(context.Background(), "0xmissing")
	require.ErrorIs(t, err, castkeep.ErrCastUnavailable)
	assert.Nil(t, artifact)
	assert.Empty(t, store.persisted)
	require.Len(t, rec.Named("backup_failed"), 1)
}

func TestCreateBackupDegradesPerFacet(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{}
	o := testOrchestrator(
		&fakeSource{posts: map[string]*castkeep.Post{"0xabc": richPost()}},
		&fakeMedia{failURLs: map[string]error{
			"https://example.com/a.png":           errors.New("404"),
			"https://app.example.com/frames/poll": errors.New("404"),
		}},
		&fakeResolver{}, // no thread, no parent, no profiles
		&fakeFrames{err: errors.New("frame server gone")},
		store, rec,
	)

	artifact, err := o.CreateBackup(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.Len(t, store.persisted, 1)

	// The gaps are visible, not fatal.
	assert.Equal(t, castkeep.Completeness{Text: true}, artifact.Completeness)
	assert.Nil(t, artifact.Post.Embeds[0].PreservedMedia)
	assert.Nil(t, artifact.Thread)
	assert.Empty(t, artifact.Frames)
}

func TestCreateBackupBrokenEmbedDoesNotClearMediaFlag(t *testing.T) {
	post := &castkeep.Post{
		ID:       "0xabc",
		AuthorID: "fid:1",
		Text:     "gm",
		Embeds: []castkeep.Embed{
			{URL: "https://example.com/ok.png", Kind: castkeep.EmbedImage},
			{URL: "https://example.com/broken.png", Kind: castkeep.EmbedImage},
		},
	}
	store := &memStore{}
	o := testOrchestrator(
		&fakeSource{posts: map[string]*castkeep.Post{"0xabc": post}},
		&fakeMedia{failURLs: map[string]error{"https://example.com/broken.png": errors.New("404")}},
		&fakeResolver{out: fullContext()},
		&fakeFrames{}, store, &logging.Recorder{},
	)

	artifact, err := o.CreateBackup(context.Background(), "0xabc")
	require.NoError(t, err)

	// One stored embed is enough for the media flag; the broken one keeps
	// its gap in the per-embed records.
	assert.True(t, artifact.Completeness.Media)
	require.NotNil(t, artifact.Post.Embeds[0].PreservedMedia)
	assert.Nil(t, artifact.Post.Embeds[1].PreservedMedia)
}

func TestCreateBackupDiskSpaceDegradesMediaAndSurfaces(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{}
	o := testOrchestrator(
		&fakeSource{posts: map[string]*castkeep.Post{"0xabc": richPost()}},
		&fakeMedia{fatal: fmt.Errorf("store: %w", castkeep.ErrDiskSpace)},
		&fakeResolver{}, &fakeFrames{}, store, rec,
	)

	artifact, err := o.CreateBackup(context.Background(), "0xabc")
	require.ErrorIs(t, err, castkeep.ErrDiskSpace)

	// The backup still produced and persisted an artifact; only the media
	// facet is missing, and the error tells the scheduler to stop.
	require.NotNil(t, artifact)
	require.Len(t, store.persisted, 1)
	assert.Equal(t, "sqlite:p-1", artifact.Storage.PrimaryRef)
	assert.False(t, artifact.Completeness.Media)
	assert.True(t, artifact.Completeness.Text)
	assert.Empty(t, rec.Named("backup_failed"))
	require.Len(t, rec.Named("artifact_persisted"), 1)
}

func TestCreateBackupPersistFailureKeepsArtifact(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{fail: errors.New("database is locked")}
	o := testOrchestrator(
		&fakeSource{posts: map[string]*castkeep.Post{"0xabc": richPost()}},
		&fakeMedia{}, &fakeResolver{out: fullContext()}, &fakeFrames{}, store, rec,
	)

	artifact, err := o.CreateBackup(context.Background(), "0xabc")
	require.Error(t, err)
	require.NotNil(t, artifact)
	assert.Empty(t, artifact.Storage.PrimaryRef)
	require.Len(t, rec.Named("backup_failed"), 1)
}

func TestCreateBulkBackupKeepsOrderAndSkipsFailures(t *testing.T) {
	rec := &logging.Recorder{}
	store := &memStore{}
	posts := map[string]*castkeep.Post{}
	for _, id := range []string{"0x1", "0x2", "0x4", "0x5"} {
		posts[id] = &castkeep.Post{ID: id, AuthorID: "fid:1", Text: "post " + id}
	}
	o := testOrchestrator(&fakeSource{posts: posts}, &fakeMedia{}, &fakeResolver{}, &fakeFrames{}, store, rec)
	o.BulkBatchSize = 2

	artifacts, err := o.CreateBulkBackup(context.Background(), []string{"0x1", "0x2", "0x3", "0x4", "0x5"})
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	// Input order survives, with the unavailable cast excluded.
	ids := make([]string, len(artifacts))
	for i, a := range artifacts {
		ids[i] = a.Post.ID
	}
	assert.Equal(t, []string{"0x1", "0x2", "0x4", "0x5"}, ids)

	// Each artifact got its own preservation id.
	seen := map[string]bool{}
	for _, a := range artifacts {
		assert.False(t, seen[a.PreservationID])
		seen[a.PreservationID] = true
	}
}

func TestCreateBulkBackupAbortsOnDiskSpace(t *testing.T) {
	store := &memStore{}
	posts := map[string]*castkeep.Post{
		"0x1": {ID: "0x1", Text: "a", Embeds: []castkeep.Embed{{URL: "https://example.com/a.png", Kind: castkeep.EmbedImage}}},
		"0x2": {ID: "0x2", Text: "b", Embeds: []castkeep.Embed{{URL: "https://example.com/b.png", Kind: castkeep.EmbedImage}}},
	}
	o := testOrchestrator(
		&fakeSource{posts: posts},
		&fakeMedia{fatal: fmt.Errorf("store: %w", castkeep.ErrDiskSpace)},
		&fakeResolver{}, &fakeFrames{}, store, &logging.Recorder{},
	)
	o.BulkBatchSize = 1

	artifacts, err := o.CreateBulkBackup(context.Background(), []string{"0x1", "0x2"})
	require.ErrorIs(t, err, castkeep.ErrDiskSpace)

	// The first backup landed, degraded; the second batch never ran.
	require.Len(t, artifacts, 1)
	assert.Equal(t, "0x1", artifacts[0].Post.ID)
	assert.False(t, artifacts[0].Completeness.Media)
	require.Len(t, store.persisted, 1)
}
