package logging

import (
	"io"
	"regexp"
	"strings"
)

var (
	// castHashRegex matches 0x-prefixed hashes typical of cast identifiers.
	castHashRegex = regexp.MustCompile(`\b0x[0-9a-fA-F]{8,}\b`)
	// contentHashRegex matches bare 64-character hex digests.
	contentHashRegex = regexp.MustCompile(`\b[0-9a-f]{64}\b`)
)

// RedactingWriter is an io.Writer that redacts sensitive information before
// writing to an underlying writer.
type RedactingWriter struct {
	underlying   io.Writer
	replacements map[*regexp.Regexp]string
}

// NewRedactingWriter creates a writer that scrubs cast hashes, content
// digests, the media path and the given handles from everything written
// through it.
func NewRedactingWriter(w io.Writer, mediaPath string, handles []string) io.Writer {
	replacements := make(map[*regexp.Regexp]string)

	replacements[castHashRegex] = "[CAST_ID]"
	replacements[contentHashRegex] = "[CONTENT_HASH]"

	if mediaPath != "" {
		// Quote meta characters in path and handle path separators for different OS
		sanitizedPath := strings.ReplaceAll(regexp.QuoteMeta(mediaPath), `\\`, `[/\\]`)
		replacements[regexp.MustCompile(sanitizedPath)] = "[MEDIA_PATH]"
	}

	for _, handle := range handles {
		handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
		if handle != "" {
			replacements[regexp.MustCompile(regexp.QuoteMeta(handle))] = "[HANDLE]"
		}
	}

	return &RedactingWriter{
		underlying:   w,
		replacements: replacements,
	}
}

// Write redacts the input byte slice and writes it to the underlying writer.
func (rw *RedactingWriter) Write(p []byte) (n int, err error) {
	originalLen := len(p)
	message := string(p)
	for re, repl := range rw.replacements {
		message = re.ReplaceAllString(message, repl)
	}

	_, err = rw.underlying.Write([]byte(message))
	if err != nil {
		return 0, err
	}

	// Return the original length to satisfy the io.Writer contract even
	// when the redacted message is shorter.
	return originalLen, nil
}
