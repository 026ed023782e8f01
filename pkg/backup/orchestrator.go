// Package backup orchestrates the preservation of a cast: fetch the post,
// preserve its media, conversation and frames in parallel, verify the
// result and persist it as a durable artifact.
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/logging"
	"github.com/castkeep/castkeep/pkg/metrics"
	"github.com/castkeep/castkeep/pkg/preserve"
	"github.com/castkeep/castkeep/pkg/storage"
	"github.com/castkeep/castkeep/pkg/thread"
)

// State names the stages a backup moves through.
type State string

const (
	StateFetching         State = "fetching"
	StatePreservingFacets State = "preserving_facets"
	StateVerifying        State = "verifying"
	StatePersisted        State = "persisted"
)

// CastSource fetches the post to back up.
type CastSource interface {
	Fetch(ctx context.Context, castID string) (*castkeep.Post, error)
}

// MediaPreserver downloads and stores media embeds.
type MediaPreserver interface {
	Preserve(ctx context.Context, url string) (*castkeep.PreservedMedia, error)
	PreserveMany(ctx context.Context, urls []string) ([]preserve.Result, error)
}

// ContextResolver reconstructs the conversation around a cast.
type ContextResolver interface {
	BuildContext(ctx context.Context, castID string) thread.Context
}

// FrameExtractor captures interactive frame embeds.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, frameURL string) (*castkeep.FrameData, error)
}

// Orchestrator drives backups end to end. The only fatal stage is the
// fetch; every facet after it degrades to absence in the artifact.
type Orchestrator struct {
	source  CastSource
	media   MediaPreserver
	context ContextResolver
	frames  FrameExtractor
	store   storage.ArtifactStore
	emitter logging.Emitter

	// BulkBatchSize is how many backups run concurrently in a bulk run.
	BulkBatchSize int
	// NewID mints preservation ids. Overridable for tests.
	NewID func() string
}

// New creates an Orchestrator. A nil emitter discards events.
func New(source CastSource, media MediaPreserver, resolver ContextResolver, frames FrameExtractor, store storage.ArtifactStore, emitter logging.Emitter) *Orchestrator {
	if emitter == nil {
		emitter = logging.Nop{}
	}
	return &Orchestrator{
		source:        source,
		media:         media,
		context:       resolver,
		frames:        frames,
		store:         store,
		emitter:       emitter,
		BulkBatchSize: 3,
		NewID:         uuid.NewString,
	}
}

func (o *Orchestrator) emit(name, castID string, fields map[string]string) {
	o.emitter.Emit(logging.Event{Name: name, CastID: castID, Fields: fields})
}

// CreateBackup preserves one cast and persists the resulting artifact.
// A fetch failure is the single fatal condition and returns
// ErrCastUnavailable with no artifact. Every facet failure, including
// running out of disk mid-download, leaves its gap in the artifact and is
// reflected in the completeness record; disk exhaustion is additionally
// returned alongside the persisted artifact so callers stop scheduling
// more downloads against a full disk.
func (o *Orchestrator) CreateBackup(ctx context.Context, castID string) (*castkeep.BackupArtifact, error) {
	metrics.BackupsStarted.Inc()
	start := time.Now()
	defer metrics.ObserveBackupDuration(start)

	o.emit("backup_started", castID, map[string]string{"state": string(StateFetching)})
	post, err := o.source.Fetch(ctx, castID)
	if err != nil {
		o.emit("backup_failed", castID, map[string]string{"state": string(StateFetching), "error": err.Error()})
		metrics.BackupsFailed.Inc()
		if !errors.Is(err, castkeep.ErrCastUnavailable) {
			err = fmt.Errorf("%w: %s: %v", castkeep.ErrCastUnavailable, castID, err)
		}
		return nil, err
	}

	o.emit("state_changed", castID, map[string]string{"state": string(StatePreservingFacets)})

	var (
		wg       sync.WaitGroup
		mediaErr error
		convo    thread.Context
		frames   []castkeep.FrameData
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		mediaErr = o.preserveMedia(ctx, castID, post)
	}()
	go func() {
		defer wg.Done()
		convo = o.resolveContext(ctx, castID)
	}()
	go func() {
		defer wg.Done()
		frames = o.captureFrames(ctx, castID, post)
	}()
	wg.Wait()

	// Disk exhaustion is the only media failure worth surfacing beyond the
	// completeness record.
	if mediaErr != nil && !errors.Is(mediaErr, castkeep.ErrDiskSpace) {
		mediaErr = nil
	}

	o.emit("state_changed", castID, map[string]string{"state": string(StateVerifying)})

	now := time.Now().UTC()
	artifact := &castkeep.BackupArtifact{
		PreservationID:    o.NewID(),
		Post:              *post,
		Thread:            convo.Thread,
		Parent:            convo.Parent,
		MentionedProfiles: convo.Profiles,
		Frames:            frames,
		Verification: castkeep.Verification{
			ContentHash: castkeep.ContentHash(post),
			ComputedAt:  now,
		},
		Completeness: completenessOf(post, convo, frames),
		CreatedAt:    now,
	}

	refs, err := o.store.Persist(artifact)
	if err != nil {
		// The artifact survives in memory for the caller; only its
		// durable copy is missing.
		o.emit("backup_failed", castID, map[string]string{"state": string(StateVerifying), "error": err.Error()})
		return artifact, fmt.Errorf("failed to persist artifact for %s: %w", castID, err)
	}
	artifact.Storage = refs

	o.emit("artifact_persisted", castID, map[string]string{
		"state":           string(StatePersisted),
		"preservation_id": artifact.PreservationID,
		"ref":             refs.PrimaryRef,
	})
	metrics.BackupsCompleted.Inc()
	return artifact, mediaErr
}

// preserveMedia downloads every embed URL and attaches the results to the
// post's embeds in place.
func (o *Orchestrator) preserveMedia(ctx context.Context, castID string, post *castkeep.Post) error {
	urls := castkeep.MediaURLs(post)
	if len(urls) == 0 {
		return nil
	}
	o.emit("facet_started", castID, map[string]string{"facet": "media"})

	results, err := o.media.PreserveMany(ctx, urls)
	preserved := make(map[string]*castkeep.PreservedMedia, len(results))
	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
			continue
		}
		if res.Media != nil {
			preserved[res.URL] = res.Media
		}
	}
	for i := range post.Embeds {
		if media, ok := preserved[post.Embeds[i].URL]; ok {
			post.Embeds[i].PreservedMedia = media
		}
	}

	status := "success"
	if err != nil || failures > 0 {
		status = "degraded"
	}
	metrics.IncFacet("media", status)
	o.emit("facet_completed", castID, map[string]string{
		"facet":    "media",
		"status":   status,
		"failures": fmt.Sprintf("%d", failures),
	})
	return err
}

func (o *Orchestrator) resolveContext(ctx context.Context, castID string) thread.Context {
	o.emit("facet_started", castID, map[string]string{"facet": "context"})
	convo := o.context.BuildContext(ctx, castID)

	status := "success"
	if convo.Thread == nil {
		status = "degraded"
	}
	metrics.IncFacet("context", status)
	o.emit("facet_completed", castID, map[string]string{"facet": "context", "status": status})
	return convo
}

// captureFrames extracts frame metadata for every frame-looking embed and
// preserves each frame's image. Failures skip the embed.
func (o *Orchestrator) captureFrames(ctx context.Context, castID string, post *castkeep.Post) []castkeep.FrameData {
	urls := castkeep.FrameURLs(post)
	if len(urls) == 0 {
		return nil
	}
	o.emit("facet_started", castID, map[string]string{"facet": "frames"})

	var frames []castkeep.FrameData
	failures := 0
	for _, url := range urls {
		frame, err := o.frames.ExtractFrame(ctx, url)
		if err != nil {
			failures++
			continue
		}
		if frame == nil {
			// Not a frame after all.
			continue
		}
		if frame.Image != "" {
			if media, err := o.media.Preserve(ctx, frame.Image); err == nil {
				frame.PreservedImage = media
			}
		}
		for i := range post.Embeds {
			if post.Embeds[i].URL == url {
				post.Embeds[i].Frame = frame
			}
		}
		frames = append(frames, *frame)
	}

	status := "success"
	if failures > 0 {
		status = "degraded"
	}
	metrics.IncFacet("frames", status)
	o.emit("facet_completed", castID, map[string]string{
		"facet":    "frames",
		"status":   status,
		"failures": fmt.Sprintf("%d", failures),
	})
	return frames
}

// completenessOf derives the completeness record strictly from what the
// facets actually produced. No flag is ever set ahead of its data. Media
// is true as soon as one embed carries a stored reference; the per-embed
// records show what is still missing.
func completenessOf(post *castkeep.Post, convo thread.Context, frames []castkeep.FrameData) castkeep.Completeness {
	c := castkeep.Completeness{
		Text:     post.Text != "",
		Thread:   convo.Thread != nil,
		Frames:   len(frames) > 0,
		Profiles: len(convo.Profiles) > 0,
	}
	for _, embed := range post.Embeds {
		if embed.PreservedMedia != nil && !embed.PreservedMedia.Ref.IsZero() {
			c.Media = true
			break
		}
	}
	return c
}

// CreateBulkBackup backs up many casts in batches: batches run one after
// another, casts within a batch concurrently. Failed casts are skipped and
// reported through events; surviving artifacts keep the input order.
// Running out of disk stops scheduling further batches; artifacts already
// persisted, including the degraded one that hit the full disk, are kept.
func (o *Orchestrator) CreateBulkBackup(ctx context.Context, castIDs []string) ([]*castkeep.BackupArtifact, error) {
	batchSize := o.BulkBatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	all := make([]*castkeep.BackupArtifact, len(castIDs))
	errs := make([]error, len(castIDs))

	for start := 0; start < len(castIDs); start += batchSize {
		end := start + batchSize
		if end > len(castIDs) {
			end = len(castIDs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				all[i], errs[i] = o.CreateBackup(ctx, castIDs[i])
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			if errs[i] != nil && errors.Is(errs[i], castkeep.ErrDiskSpace) {
				return compact(all), errs[i]
			}
		}
	}
	return compact(all), nil
}

func compact(artifacts []*castkeep.BackupArtifact) []*castkeep.BackupArtifact {
	out := make([]*castkeep.BackupArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
