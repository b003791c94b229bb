package dispatch

import (
	"notify-dispatch/internal/preference"
)

// Request is one inbound notification request. Content is either the literal
// Subject/Body pair or a Template id plus Context tree; exactly one of the two
// modes must be resolvable.
type Request struct {
	To       string                 `json:"to"`
	From     string                 `json:"from,omitempty"`
	CC       string                 `json:"cc,omitempty"`
	BCC      string                 `json:"bcc,omitempty"`
	ReplyTo  string                 `json:"replyTo,omitempty"`
	Subject  string                 `json:"subject,omitempty"`
	Body     string                 `json:"body,omitempty"`
	Template string                 `json:"template,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// PreferenceRequest carries a preference update or lookup. Omitted fields on
// update take their documented defaults: suppressed=false, digestOnly=false,
// frequency=realtime.
type PreferenceRequest struct {
	Email      string `json:"email"`
	Suppressed bool   `json:"suppressed,omitempty"`
	DigestOnly bool   `json:"digestOnly,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
}

// DigestEntry reports one recipient drained by a flush.
type DigestEntry struct {
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Result is the uniform return shape for every engine operation. Error is
// present iff Success is false; no failure propagates past the engine
// boundary as a raw error.
type Result struct {
	Success     bool               `json:"success"`
	To          string             `json:"to,omitempty"`
	Subject     string             `json:"subject,omitempty"`
	MessageID   string             `json:"messageId,omitempty"`
	Suppressed  bool               `json:"suppressed,omitempty"`
	SentAt      string             `json:"sentAt,omitempty"`
	QueuedCount int                `json:"queuedCount,omitempty"`
	QueuedAt    string             `json:"queuedAt,omitempty"`
	DigestsSent int                `json:"digestsSent,omitempty"`
	Digests     []DigestEntry      `json:"digests,omitempty"`
	Valid       *bool              `json:"valid,omitempty"`
	Preference  *preference.Record `json:"preference,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Telemetry is the event sink supplied by the host per call.
type Telemetry interface {
	LogEvent(name string, attributes map[string]interface{})
}

// Caller is the capability bundle the host supplies with each operation.
// Secrets are read-through only; the engine never persists them.
type Caller struct {
	TenantID     string
	UserID       string
	SecretLookup func(key string) (string, error)
	Telemetry    Telemetry
}

func (c Caller) logEvent(name string, attributes map[string]interface{}) {
	if c.Telemetry != nil {
		c.Telemetry.LogEvent(name, attributes)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
