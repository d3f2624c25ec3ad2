package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the delivery queue has no room.
	ErrQueueFull = errors.New("mail queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mail dispatcher closed")
)

const sendTimeout = 30 * time.Second

// Dispatcher delivers messages asynchronously through a Sender.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	queue  chan Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers draining a queue of the given size.
func NewDispatcher(sender Sender, logger *slog.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{sender: sender, logger: logger, queue: make(chan Message, queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error("email delivery failed",
				slog.String("to", msg.To),
				slog.String("trigger", msg.Trigger),
				slog.Any("error", err),
			)
		}
		cancel()
	}
}

// Enqueue schedules msg without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to drain or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
