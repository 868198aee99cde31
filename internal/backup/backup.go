// Package backup mirrors timestamped snapshot files off-host.
package backup

import "context"

// Provider uploads snapshot files after they are written locally.
type Provider interface {
	Upload(ctx context.Context, localPath string) error
	Close() error
}

// NoOp keeps everything local. It is the default provider.
type NoOp struct{}

func (NoOp) Upload(context.Context, string) error { return nil }

func (NoOp) Close() error { return nil }
