package backup

import (
	"fmt"

	castkeep "github.com/castkeep/castkeep/internal"
)

// VerifyResult is the outcome of an integrity check on one artifact.
type VerifyResult struct {
	Valid  bool
	Issues []string
}

// Verify recomputes the artifact's content hash and cross-checks its
// completeness record against the data it claims to contain. It never
// mutates the artifact.
func Verify(artifact *castkeep.BackupArtifact) VerifyResult {
	var issues []string

	if artifact.PreservationID == "" {
		issues = append(issues, "missing preservation id")
	}

	if artifact.Verification.ContentHash == "" {
		issues = append(issues, "missing content hash")
	} else if got := castkeep.ContentHash(&artifact.Post); got != artifact.Verification.ContentHash {
		issues = append(issues, "content hash mismatch")
	}

	for i, embed := range artifact.Post.Embeds {
		if embed.PreservedMedia != nil && embed.PreservedMedia.Ref.IsZero() {
			issues = append(issues, fmt.Sprintf("embed %d preserved without a storage ref", i))
		}
	}

	c := artifact.Completeness
	if c.Text && artifact.Post.Text == "" {
		issues = append(issues, "completeness claims text but the post has none")
	}
	if c.Media {
		preserved := false
		for _, embed := range artifact.Post.Embeds {
			if embed.PreservedMedia != nil {
				preserved = true
				break
			}
		}
		if !preserved {
			issues = append(issues, "completeness claims media but no embed is preserved")
		}
	}
	if c.Thread && artifact.Thread == nil {
		issues = append(issues, "completeness claims a thread but none is recorded")
	}
	if c.Frames && len(artifact.Frames) == 0 {
		issues = append(issues, "completeness claims frames but none are recorded")
	}
	if c.Profiles && len(artifact.MentionedProfiles) == 0 {
		issues = append(issues, "completeness claims profiles but none are recorded")
	}

	return VerifyResult{Valid: len(issues) == 0, Issues: issues}
}
