package news

import (
	"context"
	"time"
)

// Fetcher retrieves a URL from the network. It is the only component that
// performs network I/O; implementations enforce politeness and retry.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// AssetResolver maps remote assets to cache paths and downloads them at
// most once. prior is the record from the previous manifest, nil for new
// assets; implementations may return it unchanged when still fresh.
type AssetResolver interface {
	EnsureCached(ctx context.Context, remoteURL string, class MimeClass, prior *AssetRecord) (AssetRecord, error)
}

// Hasher computes digests for change detection and integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces pass IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
