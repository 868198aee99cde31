package collector

import (
	"context"
	"time"
)

// Fetcher retrieves the rendered page for a URL. Reset marks the
// underlying resource for teardown; the teardown is honored lazily, at
// the next Fetch, never mid-flight. Age reports how long the current
// resource has been alive so the loop can schedule restarts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Reset()
	Age() time.Duration
	Close()
}

// Source turns a raw page into per-collection snapshots. A missing
// section yields an empty snapshot for that collection; a page with no
// recognizable structure at all is a parse failure.
type Source interface {
	Parse(html string) (map[string]Snapshot, error)
	Leagues(html string) []League
}

// Publisher pushes change summaries to a topic (Pub/Sub or in-memory).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
