package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StagePassStart    Stage = "PASS_START"
	StagePassPhase    Stage = "PASS_PHASE"
	StagePassDone     Stage = "PASS_DONE"
	StagePassError    Stage = "PASS_ERROR"
	StageFetchDone    Stage = "FETCH_DONE"
	StageItemDone     Stage = "ITEM_DONE"
	StageItemFailed   Stage = "ITEM_FAILED"
	StageAssetCached  Stage = "ASSET_CACHED"
	StageAssetSkipped Stage = "ASSET_SKIPPED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of an archival pass.
type Event struct {
	// PassID uniquely identifies a pass using the 16-byte UUID form.
	PassID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or work milestone occurred.
	Stage Stage
	// Phase carries the state-machine label for PASS_PHASE events.
	Phase string
	// Mode records the pass mode (quick, articles, full) on PASS_START.
	Mode string
	// Site optionally scopes fetch events to a host label.
	Site string
	// URL is the page or asset URL; it should not contain credentials.
	URL string
	// Class is the asset mime class for ASSET_* events.
	Class string
	// Bytes carries the response size for the fetch.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures execution latency for fetches and pass completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.PassID == [16]byte{} {
		return errors.New("pass id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StagePassStart, StagePassDone, StagePassError:
	case StagePassPhase:
		if e.Phase == "" {
			return errors.New("phase event requires phase")
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageItemDone, StageItemFailed:
		if e.URL == "" {
			return errors.New("item event requires url")
		}
	case StageAssetCached, StageAssetSkipped:
		if e.Class == "" {
			return errors.New("asset event requires class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// PassUUID converts the binary pass ID to uuid.UUID for display and sinks.
func (e Event) PassUUID() uuid.UUID {
	return uuid.UUID(e.PassID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
