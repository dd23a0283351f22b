package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

const (
	manifestFile = "manifest.json"
	feedPrefix   = "news_"
	feedStamp    = "20060102_150405"
)

// ManifestStore owns the manifest file and the timestamped feed
// snapshots next to it.
type ManifestStore struct {
	fs     *CacheFS
	clock  news.Clock
	logger *zap.Logger
}

// NewManifestStore builds a store over the cache filesystem.
func NewManifestStore(fs *CacheFS, clock news.Clock, logger *zap.Logger) *ManifestStore {
	return &ManifestStore{fs: fs, clock: clock, logger: logger}
}

// Load reads the committed manifest. A missing manifest is a fresh cache,
// not an error; a corrupt one is reported to the caller.
func (s *ManifestStore) Load() (news.Manifest, error) {
	data, err := s.fs.ReadFile(manifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return news.NewManifest(), nil
		}
		return news.Manifest{}, err
	}
	var m news.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return news.Manifest{}, &news.StorageError{Op: "decode", Path: manifestFile, Err: err}
	}
	if m.Assets == nil {
		m.Assets = make(map[string]news.AssetRecord)
	}
	return m, nil
}

// Commit atomically replaces the manifest, then writes the timestamped
// feed snapshot consumed by the display side. The manifest is written to
// a temp file in the same directory and renamed into place, so a crash
// mid-commit leaves the previous manifest intact.
func (s *ManifestStore) Commit(m news.Manifest) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &news.StorageError{Op: "encode", Path: manifestFile, Err: err}
	}

	tmp, err := os.CreateTemp(s.fs.Root(), ".manifest-*.tmp")
	if err != nil {
		return &news.StorageError{Op: "commit", Path: manifestFile, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		// Best-effort cleanup; after a successful rename the file is gone.
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("failed to remove temp manifest", zap.String("path", tmpName), zap.Error(err))
		}
	}()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return &news.StorageError{Op: "commit", Path: manifestFile, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &news.StorageError{Op: "commit", Path: manifestFile, Err: err}
	}
	target, err := s.fs.Abs(manifestFile)
	if err != nil {
		return &news.StorageError{Op: "commit", Path: manifestFile, Err: err}
	}
	if err := os.Rename(tmpName, target); err != nil {
		return &news.StorageError{Op: "commit", Path: manifestFile, Err: err}
	}

	snapshot := fmt.Sprintf("%s%s.json", feedPrefix, s.clock.Now().Format(feedStamp))
	feedPayload, err := json.MarshalIndent(m.Feed(), "", "  ")
	if err != nil {
		return &news.StorageError{Op: "encode", Path: snapshot, Err: err}
	}
	if err := s.fs.WriteFile(snapshot, feedPayload); err != nil {
		return err
	}
	s.logger.Info("manifest committed",
		zap.Int("items", len(m.Items)),
		zap.Int("assets", len(m.Assets)),
		zap.String("snapshot", snapshot))
	return nil
}

// HasManifest reports whether a committed manifest exists. The serve
// readiness probe keys off this.
func (s *ManifestStore) HasManifest() bool {
	return s.fs.Exists(manifestFile)
}

// PruneFeeds removes feed snapshots beyond the keep newest. keep <= 0
// disables pruning.
func (s *ManifestStore) PruneFeeds(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	pattern := filepath.Join(s.fs.Root(), feedPrefix+"*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, &news.StorageError{Op: "prune", Path: pattern, Err: err}
	}
	// Timestamped names sort chronologically; newest last.
	sort.Strings(matches)
	if len(matches) <= keep {
		return 0, nil
	}
	removed := 0
	for _, stale := range matches[:len(matches)-keep] {
		if err := os.Remove(stale); err != nil {
			s.logger.Warn("failed to prune feed snapshot", zap.String("path", stale), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// FeedSnapshots lists existing snapshot filenames, newest first.
func (s *ManifestStore) FeedSnapshots() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.fs.Root(), feedPrefix+"*.json"))
	if err != nil {
		return nil, &news.StorageError{Op: "list", Path: s.fs.Root(), Err: err}
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
