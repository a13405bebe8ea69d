package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/export"
)

// Options configures the preview server.
type Options struct {
	// Dir is the export directory to serve. Required.
	Dir string

	// Extension is the rendered document extension the export used.
	// Defaults to ".html".
	Extension string

	// PollInterval is how often the manifest is checked for changes.
	// Defaults to 500ms.
	PollInterval time.Duration

	// OnReload is called after browsers are told to reload.
	OnReload func(clients int)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server serves an exported site with reload-on-change.
type Server struct {
	options Options
	logger  *slog.Logger
	reload  *ReloadHub

	mu          sync.RWMutex
	manifest    *export.Manifest
	manifestMod time.Time
}

// NewServer creates a preview server over an export directory. A missing
// or invalid manifest is tolerated; redirects activate once one loads.
func NewServer(options Options) *Server {
	if options.Extension == "" {
		options.Extension = ".html"
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 500 * time.Millisecond
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	s := &Server{
		options: options,
		logger:  options.Logger,
		reload:  NewReloadHub(),
	}
	if err := s.loadManifest(); err != nil {
		s.logger.Debug("no manifest loaded yet", "dir", options.Dir, "err", err)
	}
	return s
}

// Handler returns the server's HTTP handler, mountable on any mux.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/_wayfind/healthz", s.handleHealthz)
	r.Get("/_wayfind/manifest", s.handleManifest)
	r.Get("/_wayfind/reload", s.reload.HandleWebSocket)
	r.Get("/*", s.handleStatic)

	return r
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	if _, err := os.Stat(s.options.Dir); err != nil {
		return errors.New("E401").
			WithDetail("Directory: " + s.options.Dir).
			WithSuggestion("Run 'wayfind export' first.")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watchManifest(watchCtx)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		httpServer.Shutdown(shutdownCtx)
		s.reload.Close()
		return nil
	case err := <-errCh:
		s.reload.Close()
		if err != nil {
			return errors.New("E402").
				WithDetail("Address: " + addr).
				Wrap(err)
		}
		return nil
	}
}

// ClientCount returns the number of connected reload clients.
func (s *Server) ClientCount() int {
	return s.reload.ClientCount()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	m := s.manifest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if m == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no manifest"}`))
		return
	}
	json.NewEncoder(w).Encode(m)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)

	if to, ok := s.redirectFor(p); ok {
		http.Redirect(w, r, to, http.StatusFound)
		return
	}

	file := s.fileFor(p)
	if file == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, file)
}

// redirectFor looks up p in the manifest's redirect table.
func (s *Server) redirectFor(p string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return "", false
	}
	to, ok := s.manifest.Redirects[p]
	return to, ok
}

// fileFor maps a request path to a file inside the export directory:
// direct file hits win, otherwise the pretty-URL index document.
func (s *Server) fileFor(p string) string {
	rel := strings.TrimPrefix(p, "/")
	full := filepath.Join(s.options.Dir, filepath.FromSlash(rel))

	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		return full
	}

	idx := filepath.Join(full, "index"+s.options.Extension)
	if info, err := os.Stat(idx); err == nil && !info.IsDir() {
		return idx
	}
	return ""
}

// loadManifest reads manifest.json and records its mtime.
func (s *Server) loadManifest() error {
	p := filepath.Join(s.options.Dir, export.ManifestName)
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	var m export.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	s.mu.Lock()
	s.manifest = &m
	s.manifestMod = info.ModTime()
	s.mu.Unlock()
	return nil
}

// watchManifest polls the manifest mtime and reloads clients on change.
func (s *Server) watchManifest(ctx context.Context) {
	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkManifest()
		}
	}
}

// checkManifest reloads the manifest and notifies clients when its
// mtime moved forward.
func (s *Server) checkManifest() {
	info, err := os.Stat(filepath.Join(s.options.Dir, export.ManifestName))
	if err != nil {
		return
	}

	s.mu.RLock()
	last := s.manifestMod
	s.mu.RUnlock()
	if !info.ModTime().After(last) {
		return
	}

	if err := s.loadManifest(); err != nil {
		s.logger.Warn("manifest reload failed", "err", err)
		return
	}

	s.mu.RLock()
	generatedAt := ""
	if s.manifest != nil {
		generatedAt = s.manifest.GeneratedAt.UTC().Format(time.RFC3339)
	}
	s.mu.RUnlock()

	s.reload.NotifyReload(generatedAt)
	clients := s.reload.ClientCount()
	if s.options.OnReload != nil {
		s.options.OnReload(clients)
	}
	s.logger.Info("export changed, reloading clients", "clients", clients)
}
