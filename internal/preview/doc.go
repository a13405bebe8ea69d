// Package preview serves an exported site locally.
//
// The server maps pretty URLs onto the export's directory layout,
// answers manifest redirects with real 302s, and exposes the export
// manifest at /_wayfind/manifest. A polling watcher detects re-exports
// by manifest mtime and tells connected browsers to reload over the
// /_wayfind/reload WebSocket.
package preview
