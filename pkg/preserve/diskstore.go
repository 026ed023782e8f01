package preserve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/internal/fs"
)

// ByteStore persists a blob and returns how to find it again.
type ByteStore interface {
	Store(ctx context.Context, data []byte, contentType string) (castkeep.StorageRef, error)
}

// diskSpaceMargin is the free space kept in reserve beyond the blob itself.
const diskSpaceMargin = 64 << 20

// DiskStore is a content-addressed blob store on the local filesystem.
// Blobs land at <root>/<hex[:2]>/<hex>, so storing identical bytes twice is
// a no-op.
type DiskStore struct {
	root string
}

// NewDiskStore creates the store root if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create media store at %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Store writes data under its sha256 digest and returns a two-part ref:
// the digest address and the file path.
func (s *DiskStore) Store(ctx context.Context, data []byte, contentType string) (castkeep.StorageRef, error) {
	if err := ctx.Err(); err != nil {
		return castkeep.StorageRef{}, err
	}
	if avail, err := fs.Available(s.root); err == nil && avail < uint64(len(data))+diskSpaceMargin {
		return castkeep.StorageRef{}, fmt.Errorf("%w: %d bytes available at %s", castkeep.ErrDiskSpace, avail, s.root)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	dir := filepath.Join(s.root, digest[:2])
	path := filepath.Join(dir, digest)

	ref := castkeep.StorageRef{
		Primary:   "sha256:" + digest,
		Secondary: "file:" + path,
	}

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return castkeep.StorageRef{}, fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a partial
	// blob under its final name.
	tmp, err := os.CreateTemp(dir, "."+digest+".*")
	if err != nil {
		return castkeep.StorageRef{}, fmt.Errorf("failed to create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return castkeep.StorageRef{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return castkeep.StorageRef{}, fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return castkeep.StorageRef{}, fmt.Errorf("failed to finalize blob: %w", err)
	}
	return ref, nil
}
