package lsp

import (
	"net/url"
	"path/filepath"
)

// ShimDocURI names the virtual document diagnostics rounds are run
// against. It never exists on disk; the tool renders references to it
// with a "nul:" prefix which the remapper strips out of messages.
const ShimDocURI = "file:///nul"

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
