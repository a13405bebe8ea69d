// Package export renders a route tree's static surface to files on disk.
//
// The exporter enumerates every parameterless page and redirect through
// the router's site map, renders each page with a pluggable Renderer,
// and writes pretty-URL documents (about/index.html) plus a
// manifest.json describing the run. Redirects become meta-refresh stubs
// so static hosts honor them without server configuration.
//
// Site programs typically call RunIfRequested early in main: when the
// wayfind CLI drives the build it sets WAYFIND_EXPORT_DIR, the program
// exports and exits instead of serving.
package export
