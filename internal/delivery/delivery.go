// Package delivery defines the outbound delivery port consumed by the
// dispatch engine and its SMTP, SES and SNS implementations. The engine
// treats delivery as an opaque send-or-fail channel.
package delivery

import "context"

// Message is one fully rendered outbound notification. CC and BCC hold
// comma-separated address lists.
type Message struct {
	To      string
	From    string
	Subject string
	Body    string
	CC      string
	BCC     string
	ReplyTo string
}

// Deliverer is the transport abstraction. Implementations must treat Deliver
// as a potentially slow, fallible network operation.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}
