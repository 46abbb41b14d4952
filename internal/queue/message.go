package queue

import (
	"bytes"
	"time"
)

// Message is one enqueued item and its delivery state.
//
//	VISIBLE ──(pull)──► INVISIBLE ──(delete)──► removed
//	   ▲                    │
//	   └──(timeout, sweep)──┘
//
// A zero VisibleAt means the message is visible and eligible for Pull. A
// non-zero VisibleAt is the instant its invisibility expires; the sweep clears
// it once that instant is in the past. Messages are compared by pointer, never
// by body, since two messages may carry identical payloads.
type Message struct {
	// Body is the producer's payload. The queue never inspects it.
	Body []byte

	// ReceiptHandle is minted once at push time and stays the same across
	// redeliveries. Delete must present it while the message is invisible.
	ReceiptHandle string

	VisibleAt  time.Time
	EnqueuedAt time.Time

	// ReceiveCount is the number of times the message has been pulled.
	ReceiveCount int
}

// Visible reports whether the message can be pulled.
func (m *Message) Visible() bool { return m.VisibleAt.IsZero() }

// expired reports whether the message is invisible and its timeout has passed.
func (m *Message) expired(now time.Time) bool {
	return !m.VisibleAt.IsZero() && m.VisibleAt.Before(now)
}

func (m *Message) delivery() *Delivery {
	return &Delivery{
		Body:          bytes.Clone(m.Body),
		ReceiptHandle: m.ReceiptHandle,
		VisibleAt:     m.VisibleAt,
		EnqueuedAt:    m.EnqueuedAt,
		ReceiveCount:  m.ReceiveCount,
	}
}

// Delivery is what Pull hands to a consumer: a snapshot of the message taken
// while the queue lock was held. Body is a copy, so a consumer may modify it
// without affecting later redeliveries.
type Delivery struct {
	Body          []byte
	ReceiptHandle string

	// VisibleAt is when this delivery's invisibility window closes.
	VisibleAt    time.Time
	EnqueuedAt   time.Time
	ReceiveCount int
}
