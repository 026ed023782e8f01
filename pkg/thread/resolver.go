// Package thread reconstructs the conversation around a cast: the thread
// it belongs to, the post it replies to, and the profiles it mentions.
// Every lookup degrades to absence rather than failing the backup.
package thread

import (
	"context"
	"sync"

	castkeep "github.com/castkeep/castkeep/internal"
)

// GraphSource provides the social-graph lookups a resolver needs.
type GraphSource interface {
	Thread(ctx context.Context, castID string) (*castkeep.RawThread, error)
	Context(ctx context.Context, castID string) (*castkeep.RawContext, error)
	Profiles(ctx context.Context, fids []string) ([]castkeep.RawProfile, error)
}

// Resolver reconstructs conversation context from a GraphSource.
type Resolver struct {
	src GraphSource
}

// New creates a Resolver reading from src.
func New(src GraphSource) *Resolver {
	return &Resolver{src: src}
}

// ResolveThread fetches and converts the conversation for a cast. Any
// failure yields nil: thread context is a best-effort facet.
func (r *Resolver) ResolveThread(ctx context.Context, castID string) *castkeep.ThreadData {
	raw, err := r.src.Thread(ctx, castID)
	if err != nil || raw == nil {
		return nil
	}
	return castkeep.ThreadFromRaw(raw)
}

// ResolveParent fetches the reply context of a cast and returns its parent
// reference, or nil when the cast is not a reply or the lookup failed.
func (r *Resolver) ResolveParent(ctx context.Context, castID string) *castkeep.ParentRef {
	raw, err := r.src.Context(ctx, castID)
	if err != nil || raw == nil || raw.Parent == nil {
		return nil
	}
	return castkeep.ParentFromRaw(raw.Parent)
}

// ResolveProfiles fetches profiles for a set of author ids. An empty input
// returns empty without touching the source; failures also return empty.
func (r *Resolver) ResolveProfiles(ctx context.Context, fids []string) []castkeep.Profile {
	if len(fids) == 0 {
		return nil
	}
	raws, err := r.src.Profiles(ctx, fids)
	if err != nil {
		return nil
	}
	profiles := make([]castkeep.Profile, 0, len(raws))
	for _, raw := range raws {
		profiles = append(profiles, castkeep.ProfileFromRaw(raw))
	}
	return profiles
}

// Context is everything the resolver can gather around one cast.
type Context struct {
	Thread   *castkeep.ThreadData
	Parent   *castkeep.ParentRef
	Profiles []castkeep.Profile
}

// BuildContext gathers thread, parent and mentioned profiles for a cast.
// The thread and reply-context lookups run concurrently; the profile
// lookup waits on the reply context because it needs the mention list.
func (r *Resolver) BuildContext(ctx context.Context, castID string) Context {
	var out Context
	var replyCtx *castkeep.RawContext

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Thread = r.ResolveThread(ctx, castID)
	}()
	go func() {
		defer wg.Done()
		replyCtx, _ = r.src.Context(ctx, castID)
	}()
	wg.Wait()

	if replyCtx == nil {
		return out
	}
	if replyCtx.Parent != nil {
		out.Parent = castkeep.ParentFromRaw(replyCtx.Parent)
	}
	out.Profiles = r.ResolveProfiles(ctx, castkeep.MentionedFids(replyCtx))
	return out
}
