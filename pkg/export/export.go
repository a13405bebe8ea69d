package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wayfind-go/wayfind"
	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/router"
)

// Environment variables the wayfind CLI sets when it drives an export.
const (
	// EnvOutputDir triggers RunIfRequested and names the output directory.
	EnvOutputDir = "WAYFIND_EXPORT_DIR"

	// EnvWithContent resolves page content during export when set to "1".
	EnvWithContent = "WAYFIND_EXPORT_CONTENT"

	// EnvRoot restricts the export to a subtree.
	EnvRoot = "WAYFIND_EXPORT_ROOT"
)

// ManifestName is the name of the manifest file written alongside pages.
const ManifestName = "manifest.json"

// Renderer produces the document body for one resolved page.
type Renderer func(*router.Route) ([]byte, error)

// Manifest describes one export run.
type Manifest struct {
	// GeneratedAt is when the export finished.
	GeneratedAt time.Time `json:"generatedAt"`

	// BaseURL is the canonical base URL of the site, if configured.
	BaseURL string `json:"baseURL,omitempty"`

	// Pages lists every rendered document, sorted by path.
	Pages []PageEntry `json:"pages"`

	// Redirects maps each redirect pathname to its target.
	Redirects map[string]string `json:"redirects,omitempty"`
}

// PageEntry describes one rendered page.
type PageEntry struct {
	// Path is the route pathname, e.g. "/posts/hello".
	Path string `json:"path"`

	// File is the document's path relative to the output directory,
	// always forward-slashed.
	File string `json:"file"`

	// Title is the page title, if any.
	Title string `json:"title,omitempty"`

	// Size is the document size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex digest of the document.
	SHA256 string `json:"sha256"`
}

// TotalSize returns the combined size of all rendered pages.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, p := range m.Pages {
		total += p.Size
	}
	return total
}

// Config configures an Exporter.
type Config struct {
	// OutputDir is the directory documents are written to. Required.
	OutputDir string

	// BaseURL is the canonical base URL recorded in the manifest and
	// used for redirect stub canonical links.
	BaseURL string

	// Root restricts the export to a subtree. Defaults to "/".
	Root string

	// Extension is the rendered document extension. Defaults to ".html".
	Extension string

	// Concurrency is the number of pages rendered in parallel.
	// Defaults to 4.
	Concurrency int

	// WithContent resolves page content so renderers see it. Without it
	// pages resolve meta-only and Content is nil.
	WithContent bool

	// Renderer produces each document. Defaults to a JSON document of
	// the resolved route.
	Renderer Renderer

	// OnProgress is called with progress updates.
	OnProgress func(step string)

	// Logger receives per-page debug logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Exporter renders a router's static site surface.
type Exporter struct {
	router *router.Router
	config Config
}

// New creates an exporter for the given router.
func New(r *router.Router, cfg Config) *Exporter {
	if cfg.Root == "" {
		cfg.Root = "/"
	}
	if cfg.Extension == "" {
		cfg.Extension = ".html"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Renderer == nil {
		cfg.Renderer = RenderJSON
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{router: r, config: cfg}
}

// Run exports every static page and redirect under the configured root.
func (e *Exporter) Run(ctx context.Context) (*Manifest, error) {
	if e.config.OutputDir == "" {
		return nil, errors.New("E202").
			WithDetail("No output directory configured.")
	}

	e.progress("Resolving site map...")
	var smOpts []router.SiteMapOption
	if e.config.WithContent {
		smOpts = append(smOpts, router.WithContent())
	}
	sm, err := e.router.ResolveSiteMap(ctx, e.config.Root, smOpts...)
	if err != nil {
		return nil, errors.New("E203").Wrap(err)
	}

	e.progress("Preparing output directory...")
	if err := os.MkdirAll(e.config.OutputDir, 0755); err != nil {
		return nil, errors.New("E202").Wrap(err)
	}

	paths := sm.PagePaths()
	e.progress(fmt.Sprintf("Rendering %d pages...", len(paths)))

	// Workers fill entries by index so manifest order stays sorted
	// regardless of completion order.
	entries := make([]PageEntry, len(paths))
	var (
		mu       sync.Mutex
		firstErr error
	)
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := e.config.Concurrency
	if workers > len(paths) {
		workers = len(paths)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := paths[i]
				entry, err := e.renderPage(p, sm.Pages[p])
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				entries[i] = entry
				e.config.Logger.Debug("exported page", "path", p, "file", entry.File, "bytes", entry.Size)
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	e.progress(fmt.Sprintf("Writing %d redirects...", len(sm.Redirects)))
	for _, from := range sm.RedirectPaths() {
		if err := e.writeRedirect(from, sm.Redirects[from]); err != nil {
			return nil, err
		}
	}

	manifest := &Manifest{
		GeneratedAt: time.Now().UTC(),
		BaseURL:     e.config.BaseURL,
		Pages:       entries,
		Redirects:   sm.Redirects,
	}

	e.progress("Writing manifest...")
	if err := e.writeManifest(manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

// renderPage renders one page and writes its document.
func (e *Exporter) renderPage(pathname string, route *router.Route) (PageEntry, error) {
	data, err := e.config.Renderer(route)
	if err != nil {
		return PageEntry{}, errors.New("E204").
			WithDetail("Page: " + pathname).
			Wrap(err)
	}

	rel := e.fileFor(pathname)
	dest := filepath.Join(e.config.OutputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return PageEntry{}, errors.New("E202").Wrap(err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return PageEntry{}, errors.New("E202").
			WithDetail("File: " + dest).
			Wrap(err)
	}

	sum := sha256.Sum256(data)
	return PageEntry{
		Path:   pathname,
		File:   rel,
		Title:  route.Title,
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// writeRedirect writes a meta-refresh stub for one redirect.
func (e *Exporter) writeRedirect(from, to string) error {
	canonical := to
	if e.config.BaseURL != "" && strings.HasPrefix(to, "/") {
		canonical = strings.TrimSuffix(e.config.BaseURL, "/") + to
	}

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<meta http-equiv=\"refresh\" content=\"0; url=%s\">\n", to)
	fmt.Fprintf(&b, "<link rel=\"canonical\" href=\"%s\">\n", canonical)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<a href=%q>Redirecting</a>\n", to)
	b.WriteString("</body>\n</html>\n")

	rel := e.fileFor(from)
	dest := filepath.Join(e.config.OutputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.New("E202").Wrap(err)
	}
	if err := os.WriteFile(dest, []byte(b.String()), 0644); err != nil {
		return errors.New("E202").
			WithDetail("File: " + dest).
			Wrap(err)
	}
	return nil
}

// writeManifest writes manifest.json to the output directory.
func (e *Exporter) writeManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	dest := filepath.Join(e.config.OutputDir, ManifestName)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return errors.New("E202").
			WithDetail("File: " + dest).
			Wrap(err)
	}
	return nil
}

// fileFor maps a route pathname to its document path relative to the
// output directory: "/" becomes index.html, "/about" about/index.html.
func (e *Exporter) fileFor(pathname string) string {
	if pathname == "/" {
		return "index" + e.config.Extension
	}
	return path.Join(strings.TrimPrefix(pathname, "/"), "index"+e.config.Extension)
}

// progress reports export progress.
func (e *Exporter) progress(step string) {
	if e.config.OnProgress != nil {
		e.config.OnProgress(step)
	}
}

// RenderJSON is the default renderer: an indented JSON document of the
// resolved route.
func RenderJSON(route *router.Route) ([]byte, error) {
	doc := map[string]any{
		"path": route.URL.Pathname,
	}
	if route.Title != "" {
		doc["title"] = route.Title
	}
	if len(route.Meta) > 0 {
		doc["meta"] = route.Meta
	}
	if len(route.Params) > 0 {
		doc["params"] = route.Params
	}
	if route.Content != nil {
		doc["content"] = route.Content
	}
	return json.MarshalIndent(doc, "", "  ")
}

// RunIfRequested exports the navigation's route tree when the wayfind
// CLI requested it via WAYFIND_EXPORT_DIR. It returns the manifest and
// true when an export ran; (nil, false, nil) when not requested. Site
// programs call it early in main and exit when it reports true.
func RunIfRequested(ctx context.Context, nav *wayfind.Navigation, cfg Config) (*Manifest, bool, error) {
	dir := os.Getenv(EnvOutputDir)
	if dir == "" {
		return nil, false, nil
	}
	cfg.OutputDir = dir
	if v := os.Getenv(EnvWithContent); v == "1" || v == "true" {
		cfg.WithContent = true
	}
	if root := os.Getenv(EnvRoot); root != "" {
		cfg.Root = root
	}

	m, err := New(nav.Router(), cfg).Run(ctx)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}
