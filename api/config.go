// Package api provides the HTTP API server for writing and recalling
// memories and reading window summaries.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
