package stream

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultBufferSize is the emitter channel buffer applied when NewEmitter
// is given a non-positive size.
const DefaultBufferSize = 256

// Emitter is a thread-safe multi-producer event bus. Any node, including
// those running concurrently inside a fan-out, may emit packets; a single
// consumer drains them in FIFO order.
type Emitter struct {
	ch chan Packet

	mu     sync.Mutex
	step   int
	closed bool
}

// NewEmitter creates an emitter with the given channel buffer size.
func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Emitter{
		ch: make(chan Packet, bufferSize),
	}
}

// Emit pushes a packet onto the bus, stamping it with the next step number
// and the current time. Emitting after the terminal packet is a no-op, so
// stragglers from a cancelled fan-out cannot corrupt a finished stream.
func (e *Emitter) Emit(p Packet) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	p.Step = e.step
	e.step++
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	if p.Err != nil && p.ErrText == "" {
		p.ErrText = p.Err.Error()
	}
	if p.Terminal() {
		e.closed = true
	}
	e.mu.Unlock()

	e.ch <- p
}

// Packets exposes the consumer side of the bus.
func (e *Emitter) Packets() <-chan Packet {
	return e.ch
}

// Drain consumes packets in FIFO order, forwarding each to fn, until a
// terminal packet arrives. It returns nil after KindOverallStop and
// re-raises the carried error after forwarding a KindException packet.
// A forwarding error stops draining immediately.
func (e *Emitter) Drain(fn func(Packet) error) error {
	for p := range e.ch {
		if fn != nil {
			if err := fn(p); err != nil {
				return err
			}
		}
		switch p.Kind {
		case KindOverallStop:
			return nil
		case KindException:
			if p.Err != nil {
				return p.Err
			}
			return fmt.Errorf("stream terminated: %s", p.ErrText)
		}
	}
	return nil
}

// Run executes producer on a background goroutine and guarantees the bus
// always terminates: a producer error or panic is converted into a terminal
// exception packet, a normal return into KindOverallStop. The consumer side
// (Drain) therefore never blocks forever on an abandoned stream.
func Run(ctx context.Context, e *Emitter, producer func(ctx context.Context) error) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				e.Emit(Packet{
					Kind: KindException,
					Err:  fmt.Errorf("panic in stream producer: %v", p),
				})
			}
		}()

		if err := producer(ctx); err != nil {
			e.Emit(Packet{Kind: KindException, Err: err})
			return
		}
		e.Emit(Packet{Kind: KindOverallStop})
	}()
}
