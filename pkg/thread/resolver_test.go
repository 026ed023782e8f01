package thread

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castkeep "github.com/castkeep/castkeep/internal"
)

type fakeGraph struct {
	thread     *castkeep.RawThread
	threadErr  error
	context    *castkeep.RawContext
	contextErr error
	profiles   []castkeep.RawProfile
	profileErr error

	profileCalls atomic.Int64
}

func (f *fakeGraph) Thread(context.Context, string) (*castkeep.RawThread, error) {
	return f.thread, f.threadErr
}

func (f *fakeGraph) Context(context.Context, string) (*castkeep.RawContext, error) {
	return f.context, f.contextErr
}

func (f *fakeGraph) Profiles(_ context.Context, fids []string) ([]castkeep.RawProfile, error) {
	f.profileCalls.Add(1)
	return f.profiles, f.profileErr
}

func TestResolveThreadDegradesToNil(t *testing.T) {
	r := New(&fakeGraph{threadErr: errors.New("hub down")})
	assert.Nil(t, r.ResolveThread(context.Background(), "0xabc"))
}

func TestResolveParent(t *testing.T) {
	src := &fakeGraph{context: &castkeep.RawContext{
		Cast:   &castkeep.RawCast{Hash: "0xchild"},
		Parent: &castkeep.RawCast{Hash: "0xparent", Author: castkeep.RawProfile{Fid: "fid:7", Username: "bob"}},
	}}
	r := New(src)

	parent := r.ResolveParent(context.Background(), "0xchild")
	require.NotNil(t, parent)
	assert.Equal(t, "0xparent", parent.ID)
	assert.Equal(t, "bob", parent.Handle)
	assert.False(t, parent.Preserved)
}

func TestResolveParentNilWhenNotAReply(t *testing.T) {
	r := New(&fakeGraph{context: &castkeep.RawContext{Cast: &castkeep.RawCast{Hash: "0xroot"}}})
	assert.Nil(t, r.ResolveParent(context.Background(), "0xroot"))
}

func TestResolveProfilesEmptyInputSkipsSource(t *testing.T) {
	src := &fakeGraph{}
	r := New(src)

	assert.Empty(t, r.ResolveProfiles(context.Background(), nil))
	assert.Zero(t, src.profileCalls.Load())
}

func TestBuildContext(t *testing.T) {
	src := &fakeGraph{
		thread: &castkeep.RawThread{
			ThreadHash: "0xroot",
			Replies:    []castkeep.RawReply{{Hash: "0x1", Fid: "fid:1", Username: "alice"}},
		},
		context: &castkeep.RawContext{
			Cast:   &castkeep.RawCast{Hash: "0xchild", MentionedFids: []string{"fid:9"}},
			Parent: &castkeep.RawCast{Hash: "0xparent"},
		},
		profiles: []castkeep.RawProfile{{Fid: "fid:9", Username: "carol"}},
	}
	r := New(src)

	out := r.BuildContext(context.Background(), "0xchild")
	require.NotNil(t, out.Thread)
	assert.Equal(t, "0xroot", out.Thread.ThreadID)
	require.NotNil(t, out.Parent)
	assert.Equal(t, "0xparent", out.Parent.ID)
	require.Len(t, out.Profiles, 1)
	assert.Equal(t, "carol", out.Profiles[0].Handle)
}

func TestBuildContextSurvivesContextFailure(t *testing.T) {
	src := &fakeGraph{
		thread:     &castkeep.RawThread{ThreadHash: "0xroot"},
		contextErr: errors.New("timeout"),
	}
	r := New(src)

	out := r.BuildContext(context.Background(), "0xchild")
	require.NotNil(t, out.Thread)
	assert.Nil(t, out.Parent)
	assert.Empty(t, out.Profiles)
	assert.Zero(t, src.profileCalls.Load())
}
