package sinks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
)

func readJournalLines(t *testing.T, path string) []journalRecord {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []journalRecord
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec journalRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

// TestJournalSinkAppendsEvents writes a batch and verifies each line decodes.
func TestJournalSinkAppendsEvents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pass_journal.jsonl")
	sink, err := NewJournalSink(path, zap.NewNop())
	require.NoError(t, err)

	passID := uuid.New()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		{PassID: progress.UUIDToBytes(passID), TS: ts, Stage: progress.StagePassStart, Mode: "quick"},
		{
			PassID:      progress.UUIDToBytes(passID),
			TS:          ts.Add(time.Second),
			Stage:       progress.StageFetchDone,
			Site:        "www.ntn24.com",
			URL:         "https://www.ntn24.com",
			Bytes:       2048,
			StatusClass: progress.Status2xx,
			Dur:         350 * time.Millisecond,
		},
		{PassID: progress.UUIDToBytes(passID), TS: ts.Add(2 * time.Second), Stage: progress.StagePassDone, Dur: 2 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	records := readJournalLines(t, path)
	require.Len(t, records, 3)
	require.Equal(t, passID.String(), records[0].PassID)
	require.Equal(t, "PASS_START", records[0].Stage)
	require.Equal(t, "quick", records[0].Mode)
	require.Equal(t, "FETCH_DONE", records[1].Stage)
	require.Equal(t, "www.ntn24.com", records[1].Site)
	require.EqualValues(t, 2048, records[1].Bytes)
	require.EqualValues(t, 350, records[1].DurMS)
	require.Equal(t, "PASS_DONE", records[2].Stage)
}

// TestJournalSinkAppendsAcrossReopens ensures history survives sink restarts.
func TestJournalSinkAppendsAcrossReopens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pass_journal.jsonl")
	evt := progress.Event{
		PassID: progress.UUIDToBytes(uuid.New()),
		TS:     time.Now().UTC(),
		Stage:  progress.StagePassStart,
	}

	first, err := NewJournalSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Consume(context.Background(), []progress.Event{evt}))
	require.NoError(t, first.Close(context.Background()))

	second, err := NewJournalSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, second.Consume(context.Background(), []progress.Event{evt, evt}))
	require.NoError(t, second.Close(context.Background()))

	require.Len(t, readJournalLines(t, path), 3)
}

// TestJournalSinkClosedAndCanceled covers the error paths.
func TestJournalSinkClosedAndCanceled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pass_journal.jsonl")
	sink, err := NewJournalSink(path, zap.NewNop())
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sink.Consume(canceled, nil), context.Canceled)

	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))
	require.ErrorIs(t, sink.Consume(context.Background(), nil), os.ErrClosed)
}
