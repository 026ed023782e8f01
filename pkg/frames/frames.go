// Package frames captures interactive frame embeds: the rendered metadata
// a frame server declares about itself, preserved as data since the server
// will not outlive the cast.
package frames

import (
	"context"
	"fmt"

	castkeep "github.com/castkeep/castkeep/internal"
)

// Fetcher retrieves the frame metadata of a URL.
type Fetcher interface {
	FetchFrame(ctx context.Context, frameURL string) (*castkeep.RawFrameMeta, error)
}

// knownVersions are the frame spec versions this extractor understands.
// Anything else is preserved but flagged by Validate.
var knownVersions = map[string]bool{
	"vNext":      true,
	"2020-01-01": true,
}

// Extractor turns fetched frame pages into FrameData records.
type Extractor struct {
	fetcher Fetcher
}

// New creates an Extractor using fetcher.
func New(fetcher Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// ExtractFrame fetches a frame URL and builds its captured state. A page
// without a frame version tag is not a frame and yields nil without error.
func (e *Extractor) ExtractFrame(ctx context.Context, frameURL string) (*castkeep.FrameData, error) {
	raw, err := e.fetcher.FetchFrame(ctx, frameURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame %s: %w", frameURL, err)
	}
	if raw.Version == "" {
		return nil, nil
	}

	frame := &castkeep.FrameData{
		FrameURL:  frameURL,
		Title:     raw.Title,
		Image:     raw.Image,
		InputText: raw.InputText,
		State:     raw.State,
		PostURL:   raw.PostURL,
		Version:   raw.Version,
	}
	for i, b := range raw.Buttons {
		// A button slot exists only when it declared a title.
		if b.Title == "" {
			continue
		}
		action := b.Action
		if action == "" {
			action = "post"
		}
		frame.Buttons = append(frame.Buttons, castkeep.FrameButton{
			Index:  i + 1,
			Title:  b.Title,
			Action: action,
			Target: b.Target,
		})
	}
	return frame, nil
}

// ValidationResult is the outcome of validating one frame capture.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a captured frame for structural problems. An unknown
// version fails validation like any other issue, but never stops the
// capture itself: the frame data stays preserved as found.
func Validate(frame *castkeep.FrameData) ValidationResult {
	var errs []string
	if frame.FrameURL == "" {
		errs = append(errs, "missing frame URL")
	}
	if frame.Image == "" && frame.PreservedImage == nil {
		errs = append(errs, "missing frame image")
	}
	if len(frame.Buttons) > castkeep.MaxFrameButtons {
		errs = append(errs, fmt.Sprintf("too many buttons: %d", len(frame.Buttons)))
	}
	for _, b := range frame.Buttons {
		if b.Index < 1 || b.Index > castkeep.MaxFrameButtons {
			errs = append(errs, fmt.Sprintf("button index out of range: %d", b.Index))
		}
		if b.Title == "" {
			errs = append(errs, fmt.Sprintf("button %d has no title", b.Index))
		}
		if b.Action == "post_redirect" && b.Target == "" {
			errs = append(errs, fmt.Sprintf("button %d redirects without a target", b.Index))
		}
	}

	if frame.Version != "" && !knownVersions[frame.Version] {
		errs = append(errs, fmt.Sprintf("unknown frame version: %s", frame.Version))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
