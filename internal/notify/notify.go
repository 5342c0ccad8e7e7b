package notify

import "context"

// Handle identifies a previously sent message so it can be edited in place.
// A zero Handle means no message has been delivered yet.
type Handle struct {
	RecipientID int64 `json:"recipient_id"`
	MessageID   int64 `json:"message_id"`
}

// IsZero reports whether the handle refers to no message.
func (h Handle) IsZero() bool {
	return h.MessageID == 0
}

// Notifier is the outward notification channel. Delivery is best effort:
// implementations return an error on failure but callers must never treat
// a failed push as fatal.
type Notifier interface {
	Send(ctx context.Context, recipientID int64, text string) (Handle, error)
	Edit(ctx context.Context, handle Handle, text string) error
}
