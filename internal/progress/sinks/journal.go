package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
)

// journalRecord is the JSONL line written per event. It flattens the binary
// pass ID to its string form so the journal stays greppable.
type journalRecord struct {
	PassID      string    `json:"pass_id"`
	TS          time.Time `json:"ts"`
	Stage       string    `json:"stage"`
	Phase       string    `json:"phase,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Site        string    `json:"site,omitempty"`
	URL         string    `json:"url,omitempty"`
	Class       string    `json:"class,omitempty"`
	Bytes       int64     `json:"bytes,omitempty"`
	StatusClass string    `json:"status_class,omitempty"`
	DurMS       int64     `json:"dur_ms,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// JournalSink appends progress events to a JSONL file, one event per line.
// The journal lives next to the manifest so a cache directory carries its
// own pass history.
type JournalSink struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// NewJournalSink opens (or creates) the journal file for appending.
func NewJournalSink(path string, logger *zap.Logger) (*JournalSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = filepath.Clean(path)
	// #nosec G304 -- the journal path comes from validated configuration.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open pass journal %s: %w", path, err)
	}
	return &JournalSink{
		path:   path,
		logger: logger,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Consume appends each event in the batch as one JSON line. The batch is
// flushed to the OS before returning so a crash loses at most the batch
// being written.
func (s *JournalSink) Consume(ctx context.Context, batch []progress.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("journal consume: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("journal %s: %w", s.path, os.ErrClosed)
	}
	enc := json.NewEncoder(s.writer)
	for _, evt := range batch {
		rec := journalRecord{
			PassID:      evt.PassUUID().String(),
			TS:          evt.TS.UTC(),
			Stage:       string(evt.Stage),
			Phase:       evt.Phase,
			Mode:        evt.Mode,
			Site:        evt.Site,
			URL:         evt.URL,
			Class:       evt.Class,
			Bytes:       evt.Bytes,
			StatusClass: string(evt.StatusClass),
			DurMS:       evt.Dur.Milliseconds(),
			Note:        evt.Note,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("append journal %s: %w", s.path, err)
		}
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush journal %s: %w", s.path, err)
	}
	return nil
}

// Close flushes buffered lines and closes the file. Subsequent calls are
// no-ops.
func (s *JournalSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.writer.Flush(); err != nil {
		s.logger.Warn("journal flush on close failed", zap.Error(err))
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close journal %s: %w", s.path, err)
	}
	return nil
}
