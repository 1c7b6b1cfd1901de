package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/retailops/backoffice/internal/cacheinv"
)

// WatchOptions configures the watch command.
type WatchOptions struct {
	URL       string
	SessionID string
	Stdout    io.Writer
	Logger    *slog.Logger
}

// printer is an invalidation target that reports instead of caching.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) Invalidate(key cacheinv.QueryKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "invalidate %s\n", key)
}

func (p *printer) InvalidateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, "resync all")
}

// Watch subscribes to the change feed and prints the cache keys a client
// would invalidate. It returns when ctx is cancelled or the session is
// rejected.
func Watch(ctx context.Context, opts WatchOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("watch: url required")
	}
	p := &printer{out: opts.Stdout}
	sub := cacheinv.NewSubscriber(cacheinv.SubscriberConfig{
		URL:       opts.URL,
		SessionID: opts.SessionID,
		OnConnect: func(n int) {
			if opts.Logger != nil {
				opts.Logger.Info("watch connected", slog.Int("connection", n))
			}
		},
	}, cacheinv.NewInvalidator(p, nil, opts.Logger), p, opts.Logger)
	return sub.Run(ctx)
}
