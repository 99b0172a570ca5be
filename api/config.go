// Package api provides the HTTP API server for uploading, managing, and
// querying documents.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UploadDir is where uploaded files are stored.
	UploadDir string

	// MaxUploadBytes caps accepted upload sizes. Zero means the document
	// processor's default limit applies.
	MaxUploadBytes int64
}

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
