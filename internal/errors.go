package castkeep

import "errors"

var (
	// ErrCastUnavailable marks the single fatal condition of a backup: the
	// base post could not be fetched or decoded. Everything else degrades.
	ErrCastUnavailable = errors.New("cast unavailable")

	// ErrDiskSpace is returned when the media store does not have enough
	// free space to hold a download.
	ErrDiskSpace = errors.New("not enough disk space")
)
