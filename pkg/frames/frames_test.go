package frames

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castkeep "github.com/castkeep/castkeep/internal"
)

type fakeFetcher struct {
	meta *castkeep.RawFrameMeta
	err  error
}

func (f *fakeFetcher) FetchFrame(context.Context, string) (*castkeep.RawFrameMeta, error) {
	return f.meta, f.err
}

func TestExtractFrame(t *testing.T) {
	meta := &castkeep.RawFrameMeta{
		Version: "vNext",
		Image:   "https://img.example.com/f.png",
		Title:   "Poll",
		PostURL: "https://example.com/submit",
	}
	meta.Buttons[0] = castkeep.RawFrameButton{Title: "Yes"}
	meta.Buttons[1] = castkeep.RawFrameButton{Title: "No", Action: "post_redirect", Target: "https://example.com/no"}

	e := New(&fakeFetcher{meta: meta})
	frame, err := e.ExtractFrame(context.Background(), "https://app.example.com/frames/poll")
	require.NoError(t, err)
	require.NotNil(t, frame)

	assert.Equal(t, "vNext", frame.Version)
	require.Len(t, frame.Buttons, 2)
	assert.Equal(t, castkeep.FrameButton{Index: 1, Title: "Yes", Action: "post"}, frame.Buttons[0])
	assert.Equal(t, castkeep.FrameButton{Index: 2, Title: "No", Action: "post_redirect", Target: "https://example.com/no"}, frame.Buttons[1])
}

func TestExtractFrameSkipsTitlelessButtonSlots(t *testing.T) {
	meta := &castkeep.RawFrameMeta{Version: "vNext", Image: "https://img.example.com/f.png"}
	// Action tags without a title tag do not make a button.
	meta.Buttons[2] = castkeep.RawFrameButton{Action: "link", Target: "https://example.com"}

	e := New(&fakeFetcher{meta: meta})
	frame, err := e.ExtractFrame(context.Background(), "https://app.example.com/frames/x")
	require.NoError(t, err)
	assert.Empty(t, frame.Buttons)
}

func TestExtractFrameNonFrameYieldsNil(t *testing.T) {
	e := New(&fakeFetcher{meta: &castkeep.RawFrameMeta{Title: "Just a blog post"}})
	frame, err := e.ExtractFrame(context.Background(), "https://example.com/frames/not-really")
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestExtractFrameFetchError(t *testing.T) {
	e := New(&fakeFetcher{err: errors.New("connection refused")})
	_, err := e.ExtractFrame(context.Background(), "https://example.com/frames/x")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &castkeep.FrameData{
		FrameURL: "https://app.example.com/frames/poll",
		Image:    "https://img.example.com/f.png",
		Version:  "vNext",
		Buttons:  []castkeep.FrameButton{{Index: 1, Title: "Go", Action: "post"}},
	}
	result := Validate(valid)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateStructuralErrors(t *testing.T) {
	frame := &castkeep.FrameData{
		Version: "vNext",
		Buttons: []castkeep.FrameButton{
			{Index: 5, Title: "Out of range", Action: "post"},
			{Index: 2, Title: "Leave", Action: "post_redirect"},
		},
	}
	result := Validate(frame)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "missing frame URL")
	assert.Contains(t, result.Errors, "missing frame image")
	assert.Contains(t, result.Errors, "button index out of range: 5")
	assert.Contains(t, result.Errors, "button 2 redirects without a target")
}

func TestValidateUnknownVersionInvalidButPreserved(t *testing.T) {
	frame := &castkeep.FrameData{
		FrameURL: "https://app.example.com/frames/poll",
		Image:    "https://img.example.com/f.png",
		Version:  "v2030",
	}
	result := Validate(frame)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"unknown frame version: v2030"}, result.Errors)
	// The capture itself is untouched by the verdict.
	assert.Equal(t, "v2030", frame.Version)
}

func TestValidateAcceptsPreservedImageOnly(t *testing.T) {
	frame := &castkeep.FrameData{
		FrameURL:       "https://app.example.com/frames/poll",
		Version:        "vNext",
		PreservedImage: &castkeep.PreservedMedia{Ref: castkeep.StorageRef{Primary: "sha256:ff"}},
	}
	result := Validate(frame)
	assert.True(t, result.Valid)
}
