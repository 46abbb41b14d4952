// Package consumer runs a pool of pull loops against a visibility queue.
//
// Each worker pulls one delivery at a time and passes it to a Handler. A nil
// error deletes the message with its receipt handle. A handler error leaves
// the message alone: it stays invisible until its visibility timeout expires
// and is then redelivered, which is the only retry mechanism the queue has.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/snehjoshi/visq/internal/metrics"
	"github.com/snehjoshi/visq/internal/queue"
)

// Source is the part of the queue a consumer needs.
type Source interface {
	Name() string
	Pull(visibilityTimeout time.Duration) (*queue.Delivery, error)
	Delete(receiptHandle string) bool
}

// Handler processes one delivery.
type Handler func(ctx context.Context, d *queue.Delivery) error

// Config controls a Manager.
type Config struct {
	Workers           int
	VisibilityTimeout time.Duration
	// PollInterval is how long a worker sleeps after an empty pull.
	PollInterval time.Duration
}

// Manager owns the worker goroutines.
type Manager struct {
	src     Source
	handler Handler
	cfg     Config
	metrics *metrics.Registry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a stopped manager. reg may be nil.
func NewManager(src Source, h Handler, cfg Config, reg *metrics.Registry) *Manager {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Manager{src: src, handler: h, cfg: cfg, metrics: reg}
}

// Start launches the workers. They run until ctx is done or Close is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(ctx, i)
	}
	slog.Info("consumers started", "queue", m.src.Name(), "workers", m.cfg.Workers,
		"visibility_timeout", m.cfg.VisibilityTimeout)
}

// Close stops the workers and waits for the current deliveries to finish.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	defer m.wg.Done()
	idle := time.NewTimer(0)
	defer idle.Stop()
	<-idle.C

	for {
		if ctx.Err() != nil {
			return
		}
		d, err := m.src.Pull(m.cfg.VisibilityTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return
			}
			slog.Warn("consumer: pull error", "worker", worker, "err", err)
		}
		if d == nil {
			idle.Reset(m.cfg.PollInterval)
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}
		m.process(ctx, worker, d)
	}
}

func (m *Manager) process(ctx context.Context, worker int, d *queue.Delivery) {
	name := m.src.Name()
	if err := m.handler(ctx, d); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// Shutdown interrupted the handler; the message redelivers as usual.
			slog.Debug("consumer: handler interrupted by shutdown",
				"worker", worker, "handle", d.ReceiptHandle)
			return
		}
		slog.Warn("consumer: handler failed, leaving for redelivery",
			"worker", worker, "handle", d.ReceiptHandle, "receive_count", d.ReceiveCount, "err", err)
		if m.metrics != nil {
			m.metrics.HandlerFailure.Inc(name)
		}
		return
	}
	if !m.src.Delete(d.ReceiptHandle) {
		// The visibility timeout elapsed while handling; the message is back
		// in the queue and will be processed again.
		slog.Warn("consumer: delete rejected", "worker", worker, "handle", d.ReceiptHandle)
		return
	}
	if m.metrics != nil {
		m.metrics.Handled.Inc(name)
	}
}
