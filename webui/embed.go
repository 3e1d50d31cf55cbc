// Package webui exposes the embedded dashboard filesystem.
// It lives at the module root to embed the sibling "web/" directory.
// internal/server/embed.go imports this package to serve the page.
package webui

import "embed"

// FS is the embedded web directory tree.
//
//go:embed web
var FS embed.FS
