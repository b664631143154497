package notify

import (
	"context"
	"log"

	"github.com/01moynul/servehub/internal/models"
)

// Emitter appends notifications on behalf of domain operations.
type Emitter interface {
	Emit(ctx context.Context, input EmitInput) (models.Notification, error)
}

// Notifier gives domain flows fire-and-forget emission: a failed write is
// logged and never fails the operation that triggered it.
type Notifier struct {
	emitter Emitter
	logger  *log.Logger
}

// NewNotifier wraps an emitter. A nil logger uses the standard logger.
func NewNotifier(emitter Emitter, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{emitter: emitter, logger: logger}
}

// Notify emits input and reports whether a record was written (or already existed).
func (n *Notifier) Notify(ctx context.Context, input EmitInput) bool {
	if n == nil || n.emitter == nil {
		return false
	}
	if _, err := n.emitter.Emit(ctx, input); err != nil {
		n.logger.Printf("Warning: failed to save %s notification for user %s: %v", input.Type, input.RecipientID, err)
		return false
	}
	return true
}

// NotifyAll emits one notification per recipient, building each input with build.
func (n *Notifier) NotifyAll(ctx context.Context, recipientIDs []string, build func(recipientID string) EmitInput) int {
	sent := 0
	for _, id := range recipientIDs {
		input := build(id)
		input.RecipientID = id
		if n.Notify(ctx, input) {
			sent++
		}
	}
	return sent
}
