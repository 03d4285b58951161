package viewcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"civicportal/pkg/requestcontext"
)

// Fanout invalidates locally and broadcasts the targets to the other portal
// instances over core NATS. Delivery is best effort: a failed publish is
// logged and the local invalidation still stands.
type Fanout struct {
	local   Invalidator
	nc      *nats.Conn
	subject string
	sub     *nats.Subscription
	logger  *slog.Logger
	metrics *Metrics
}

type invalidationMessage struct {
	Targets []Target `json:"targets"`
}

type FanoutOption func(*Fanout)

func WithFanoutLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func WithFanoutMetrics(m *Metrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// Connect dials url with echo disabled, so an instance never receives its
// own broadcasts, and subscribes to subject.
func Connect(url, subject string, local Invalidator, opts ...FanoutOption) (*Fanout, error) {
	nc, err := nats.Connect(url, nats.Name("civicportal"), nats.NoEcho())
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	f, err := NewFanout(nc, subject, local, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return f, nil
}

// NewFanout subscribes on an existing connection.
func NewFanout(nc *nats.Conn, subject string, local Invalidator, opts ...FanoutOption) (*Fanout, error) {
	if local == nil {
		return nil, fmt.Errorf("local invalidator is required")
	}
	f := &Fanout{
		local:   local,
		nc:      nc,
		subject: subject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	sub, err := nc.Subscribe(subject, f.handle)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	f.sub = sub
	f.logger.Info("view invalidation fan-out connected", "subject", subject)
	return f, nil
}

// Invalidate drops targets here and publishes them for the other instances.
func (f *Fanout) Invalidate(ctx context.Context, targets []Target) {
	if len(targets) == 0 {
		return
	}
	f.local.Invalidate(ctx, targets)

	data, err := json.Marshal(invalidationMessage{Targets: targets})
	if err != nil {
		f.metrics.incRemote("out", "error")
		f.logger.ErrorContext(ctx, "encode invalidation", "error", err)
		return
	}
	if err := f.nc.Publish(f.subject, data); err != nil {
		f.metrics.incRemote("out", "error")
		f.logger.WarnContext(ctx, "invalidation broadcast failed",
			"subject", f.subject,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	f.metrics.incRemote("out", "ok")
}

func (f *Fanout) handle(msg *nats.Msg) {
	var m invalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		f.metrics.incRemote("in", "error")
		f.logger.Warn("discarding malformed invalidation", "subject", msg.Subject, "error", err)
		return
	}
	f.metrics.incRemote("in", "ok")
	f.local.Invalidate(context.Background(), m.Targets)
}

// Close unsubscribes and closes the connection.
func (f *Fanout) Close() error {
	var err error
	if f.sub != nil {
		err = f.sub.Unsubscribe()
	}
	f.nc.Close()
	return err
}

var _ Invalidator = (*Fanout)(nil)
