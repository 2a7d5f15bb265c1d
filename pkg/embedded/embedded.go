// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains the dashboard assets served by the HTTP server
//
//go:embed static
var Files embed.FS
