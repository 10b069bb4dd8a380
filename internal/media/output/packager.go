package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dchest/uniuri"
	"github.com/pkg/browser"

	"github.com/slopify/slopify/packages/cli/internal/util"
)

// Packager saves blobs into a directory.
type Packager struct {
	Dir    string
	Logger *slog.Logger

	// open reveals a saved file; replaced in tests.
	open func(path string) error
}

// NewPackager creates a packager writing into dir ("." when empty).
func NewPackager(dir string, logger *slog.Logger) *Packager {
	if dir == "" {
		dir = "."
	}
	return &Packager{Dir: dir, Logger: util.ComponentLogger(logger, "packager"), open: browser.OpenFile}
}

// Download writes the blob to Dir/filename. Bytes go to a transient
// .<name>.<random>.part file first, which is renamed into place once and always
// removed on failure.
func (p *Packager) Download(blob *Blob, filename string) (string, error) {
	if blob.Empty() {
		return "", errors.New("nothing to save: empty video")
	}
	if filename == "" {
		return "", errors.New("filename is required")
	}
	name := filepath.Base(filename)
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	final := filepath.Join(p.Dir, name)
	tmp := filepath.Join(p.Dir, fmt.Sprintf(".%s.%s.part", name, uniuri.NewLen(8)))

	var once sync.Once
	cleanup := func() { once.Do(func() { os.Remove(tmp) }) }
	defer cleanup()

	if err := os.WriteFile(tmp, blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write video: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("failed to save video: %w", err)
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		abs = final
	}
	if p.Logger != nil {
		p.Logger.Info("Video saved", "path", abs, "size", FormatFileSize(int64(blob.Size())))
	}
	return abs, nil
}

// Reveal opens a saved file with the desktop's default handler.
func (p *Packager) Reveal(path string) error {
	open := p.open
	if open == nil {
		open = browser.OpenFile
	}
	if err := open(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
