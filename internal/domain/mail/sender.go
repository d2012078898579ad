package mail

import (
	"context"
	"fmt"
)

// ErrDelivery is wrapped by Sender implementations when the transport rejects or fails a message.
var ErrDelivery = fmt.Errorf("mail delivery failed")

// Message is a single outbound e-mail with HTML and plain-text alternatives.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Receipt describes what the transport accepted.
type Receipt struct {
	MessageID string
	Accepted  []string
}

// Sender dispatches e-mail. Implementations must honor ctx cancellation and deadlines.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}
