package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// FSDiscoverer reads from the local filesystem.
type FSDiscoverer struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> default set
	Logger      *slog.Logger
}

func NewFSDiscoverer(logger *slog.Logger) *FSDiscoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSDiscoverer{Logger: logger}
}

func (d *FSDiscoverer) allowed(ext string) bool {
	ext = constants.NormalizeExt(ext)
	if d.AllowedExts != nil {
		_, ok := d.AllowedExts[ext]
		return ok
	}
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

func (d *FSDiscoverer) DiscoverPath(ctx context.Context, path string) (entity.RawDocument, error) {
	var doc entity.RawDocument

	abs, err := filepath.Abs(path)
	if err != nil {
		return doc, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !d.allowed(ext) {
		return doc, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return doc, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.Logger.Warn("close file", "path", abs, "error", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return doc, fmt.Errorf("stat: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return doc, fmt.Errorf("hash: %w", err)
	}

	doc = entity.RawDocument{
		ID:           uuid.New(),
		SourcePath:   abs,
		FileExt:      ext,
		Size:         info.Size(),
		ContentHash:  h.Sum(nil),
		DiscoveredAt: time.Now().UTC(),
	}
	_ = ctx
	return doc, nil
}

// DiscoverDirectory walks root, skips hidden entries if requested, and builds
// a RawDocument per file with an allowed extension. Per-file errors are
// counted, not propagated; only the walk itself can fail the call.
func (d *FSDiscoverer) DiscoverDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.RawDocument, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var docs []entity.RawDocument
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			d.Logger.Warn("walk entry failed", "path", path, "error", walkErr)
			return nil
		}
		if skipHidden && isHidden(path) {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if de.IsDir() {
			return nil
		}
		if !d.allowed(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := d.DiscoverPath(ctx, path)
		if err != nil {
			stats.Failed++
			d.Logger.Warn("discover failed", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return docs, stats, fmt.Errorf("walk: %w", err)
	}
	return docs, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
