package mailer

import (
	"context"
	"fmt"
)

// Mailer renders authentication emails and hands them to the dispatcher.
// Rendering happens on the caller's goroutine so template problems surface
// as errors; delivery is asynchronous.
type Mailer struct {
	renderer   *Renderer
	dispatcher *Dispatcher
}

// New builds a Mailer.
func New(renderer *Renderer, dispatcher *Dispatcher) *Mailer {
	return &Mailer{renderer: renderer, dispatcher: dispatcher}
}

// SendCode renders the trigger's template with code and queues it for to.
func (m *Mailer) SendCode(ctx context.Context, trigger, to, code string) error {
	msg, err := m.renderer.Render(ctx, trigger, to, code)
	if err != nil {
		return err
	}
	if err := m.dispatcher.Enqueue(msg); err != nil {
		return fmt.Errorf("queue %s email: %w", trigger, err)
	}
	return nil
}
