package publish

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wayfind-go/wayfind/internal/errors"
	"github.com/wayfind-go/wayfind/pkg/export"
)

// Publisher pushes the contents of an export directory to a destination.
type Publisher interface {
	// Publish uploads every file under dir. m is the export's manifest;
	// publishers may use it for metadata and integrity checks.
	Publish(ctx context.Context, m *export.Manifest, dir string) error
}

// LocalDir copies the export into another local directory.
type LocalDir struct {
	// Dest is the destination directory, created if missing.
	Dest string

	// Logger receives per-file debug logs. Defaults to slog.Default().
	Logger *slog.Logger
}

var _ Publisher = (*LocalDir)(nil)

// Publish copies every exported file into Dest, preserving layout.
func (l *LocalDir) Publish(ctx context.Context, _ *export.Manifest, dir string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := listFiles(dir)
	if err != nil {
		return err
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(dir, filepath.FromSlash(rel))
		dst := filepath.Join(l.Dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.New("E302").Wrap(err)
		}
		if err := copyFile(src, dst); err != nil {
			return errors.New("E302").
				WithDetail("File: " + rel).
				Wrap(err)
		}
		logger.Debug("published file", "file", rel, "dest", dst)
	}
	return nil
}

// listFiles returns every regular file under dir as a sorted,
// forward-slashed path relative to dir.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E303").
				WithDetail("Directory: " + dir)
		}
		return nil, errors.New("E302").Wrap(err)
	}
	if len(files) == 0 {
		return nil, errors.New("E303").
			WithDetail("Directory: " + dir)
	}
	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// contentTypes pins the types static hosts care about, independent of
// the system mime.types tables.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".json": "application/json",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".xml":  "application/xml",
	".txt":  "text/plain; charset=utf-8",
	".svg":  "image/svg+xml",
}

// contentTypeFor returns the MIME type for a file path.
func contentTypeFor(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
