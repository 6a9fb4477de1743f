package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

// processedSuffix tags the preprocessed copy written next to the original.
const processedSuffix = "_processed"

// LocalStore keeps receipt images on the local filesystem under a single
// upload directory. Filenames are generated, never taken from the client.
type LocalStore struct {
	dir    string
	maxAge time.Duration
	logg   *logger.Logger
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(cfg config.StorageConfig, logg *logger.Logger) (*LocalStore, error) {
	if cfg.UploadDir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &LocalStore{
		dir:    cfg.UploadDir,
		maxAge: cfg.ProcessedMaxAge,
		logg:   logg,
	}, nil
}

// Save streams an uploaded image to disk and returns its path. The extension
// is kept from the original filename when it looks safe.
func (s *LocalStore) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".pdf":
	default:
		ext = ".jpg"
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// ProcessedPath returns where the preprocessed copy of an image lives.
func ProcessedPath(original string) string {
	ext := filepath.Ext(original)
	return strings.TrimSuffix(original, ext) + processedSuffix + ext
}

// Remove deletes the stored file, ignoring already-gone files.
func (s *LocalStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// CleanupProcessed deletes preprocessed copies older than the configured max
// age. Originals are never touched. Returns the number of files removed.
func (s *LocalStore) CleanupProcessed(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading upload dir: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !strings.HasSuffix(base, processedSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("failed to remove %s: %v", path, err))
			}
			continue
		}
		removed++
	}
	return removed, nil
}
