package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindScanCredited is sent when a bin scan credits a user.
	KindScanCredited = "scan_credited"
	// KindDonationCompleted is sent when a user donates credits to a cause.
	KindDonationCompleted = "donation_completed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Title       string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger. It is the
// default until a push channel exists.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("title", message.Title),
		slog.String("body", message.Body),
	)
	return nil
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send appends the message.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message, or the zero value.
func (r *Recorder) Last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}
	}
	return r.messages[len(r.messages)-1]
}
