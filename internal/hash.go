package castkeep

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
)

// contentHashVersion is folded into every digest so a future change to the
// canonical form cannot collide with existing hashes.
const contentHashVersion = "castkeep/1"

// ContentHash computes the tamper-evidence digest of a post. It is a pure
// function of the post identity fields and the ordered embed URLs; the
// outcome of media, thread or frame preservation never changes it.
func ContentHash(post *Post) string {
	h := sha256.New()
	writeField(h, contentHashVersion)
	writeField(h, post.ID)
	writeField(h, post.AuthorID)
	writeField(h, post.Text)
	writeField(h, strconv.FormatInt(post.Timestamp.UTC().Unix(), 10))
	for _, embed := range post.Embeds {
		writeField(h, embed.URL)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes each field so adjacent fields cannot be
// reassociated ("ab","c" must not hash like "a","bc").
func writeField(w io.Writer, field string) {
	_, _ = io.WriteString(w, strconv.Itoa(len(field)))
	_, _ = io.WriteString(w, ":")
	_, _ = io.WriteString(w, field)
	_, _ = io.WriteString(w, "\n")
}
