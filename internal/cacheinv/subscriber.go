package cacheinv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retailops/backoffice/internal/events"
)

// Resyncer refreshes every cached query. It runs after a reconnect because the
// server keeps no queue of missed events.
type Resyncer interface {
	InvalidateAll()
}

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	// URL of the raw websocket endpoint, e.g. ws://host/events/websocket.
	URL string
	// SessionID is sent as a bearer token.
	SessionID  string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// OnConnect, when set, is called after every successful dial with the
	// number of connections made so far.
	OnConnect func(n int)
}

// Subscriber keeps a websocket connection to the server's change feed open
// and forwards every message to the invalidator.
type Subscriber struct {
	cfg    SubscriberConfig
	dialer *websocket.Dialer
	inv    *Invalidator
	resync Resyncer
	logger *slog.Logger
	dials  int
}

// NewSubscriber constructs a Subscriber.
func NewSubscriber(cfg SubscriberConfig, inv *Invalidator, resync Resyncer, logger *slog.Logger) *Subscriber {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		inv:    inv,
		resync: resync,
		logger: logger,
	}
}

// Run connects and reconnects until ctx is cancelled. Every connection after
// the first triggers a full resync.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := s.cfg.MinBackoff
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == events.CloseUnauthenticated {
			return fmt.Errorf("cacheinv: session rejected: %w", err)
		}
		s.logger.Warn("events subscription lost", slog.Any("error", err), slog.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	header := http.Header{}
	if s.cfg.SessionID != "" {
		header.Set("Authorization", "Bearer "+s.cfg.SessionID)
	}
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.dials++
	if s.dials > 1 && s.resync != nil {
		s.resync.InvalidateAll()
	}
	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(s.dials)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.inv.HandleMessage(ctx, payload)
	}
}
