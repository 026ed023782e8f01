package network

import "strings"

// InitTransport configures the process-wide HTTP transport. With an empty
// bind address the default transport is left alone.
func InitTransport(bindAddress string) error {
	if strings.TrimSpace(bindAddress) == "" {
		return nil
	}
	transport, err := NewHTTPTransport(bindAddress)
	if err != nil {
		return err
	}
	SetGlobalTransport(transport)
	return nil
}
