// Package producer pushes generated messages into a queue at a bounded rate.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/snehjoshi/visq/internal/queue"
)

// Pusher is the part of the queue a producer needs.
type Pusher interface {
	Push(body []byte) (string, error)
}

// BodyFunc builds the body of the seq-th message (1-based) of producer id.
type BodyFunc func(id int, seq int64) []byte

// DefaultBody renders a small JSON document identifying the message.
func DefaultBody(id int, seq int64) []byte {
	return []byte(fmt.Sprintf(`{"producer":%d,"seq":%d}`, id, seq))
}

// Producer paces pushes with a token bucket: rps tokens per second, up to
// burst at once.
type Producer struct {
	id      int
	q       Pusher
	limiter *rate.Limiter
	body    BodyFunc
	log     *slog.Logger

	sent atomic.Int64
}

// New returns a producer pushing into q at no more than rps messages per
// second. A nil body uses DefaultBody.
func New(id int, q Pusher, rps float64, burst int, body BodyFunc) *Producer {
	if body == nil {
		body = DefaultBody
	}
	if burst < 1 {
		burst = 1
	}
	return &Producer{
		id:      id,
		q:       q,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		body:    body,
		log:     slog.Default().With("producer", id),
	}
}

// Run pushes until ctx is done or a push fails. It returns nil when stopped
// by ctx.
func (p *Producer) Run(ctx context.Context) error {
	p.log.Info("producer started", "rate", float64(p.limiter.Limit()), "burst", p.limiter.Burst())
	defer func() { p.log.Info("producer stopped", "sent", p.sent.Load()) }()

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			// Wait gives up early when the next token lands after ctx's
			// deadline; burst >= 1 rules out every other failure.
			<-ctx.Done()
			return nil
		}
		seq := p.sent.Load() + 1
		if _, err := p.q.Push(p.body(p.id, seq)); err != nil {
			if ctx.Err() != nil && errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return fmt.Errorf("producer %d: push %d: %w", p.id, seq, err)
		}
		p.sent.Add(1)
	}
}

// Sent returns how many messages were pushed so far.
func (p *Producer) Sent() int64 { return p.sent.Load() }
