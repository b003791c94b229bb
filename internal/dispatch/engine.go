// Package dispatch implements the notification dispatch engine: request
// validation, suppression and rate-limit policy, template rendering, digest
// accumulation and the delivery hand-off.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"notify-dispatch/internal/audit"
	"notify-dispatch/internal/common/config"
	"notify-dispatch/internal/common/errors"
	"notify-dispatch/internal/common/logger"
	"notify-dispatch/internal/delivery"
	"notify-dispatch/internal/digest"
	"notify-dispatch/internal/preference"
	"notify-dispatch/internal/ratelimit"
	"notify-dispatch/internal/template"
)

const digestFooter = "To change your email preferences, visit your account settings."

// Metrics is the subset of the observability surface the engine reports to.
type Metrics interface {
	RecordDispatch(ctx context.Context, operation, status string)
	RecordDuration(ctx context.Context, operation string, duration time.Duration)
	RecordDigests(ctx context.Context, count int64)
}

// Dependencies carries the collaborators wired into the engine.
type Dependencies struct {
	Logger      logger.Logger
	Templates   *template.Store
	Preferences preference.Store
	Limiter     ratelimit.Limiter
	Digests     digest.Queue
	Deliverer   delivery.Deliverer
	Metrics     Metrics
	Audit       audit.Recorder
}

// Engine orchestrates validation, policy and delivery for the six dispatch
// operations. Every operation returns a uniform Result and never panics or
// leaks a raw error past the engine boundary.
type Engine struct {
	cfg       config.DispatchConfig
	logger    logger.Logger
	templates *template.Store
	prefs     preference.Store
	limiter   ratelimit.Limiter
	queue     digest.Queue
	deliverer delivery.Deliverer
	metrics   Metrics
	audit     audit.Recorder
}

// New creates a dispatch engine from its configuration and collaborators.
func New(cfg config.DispatchConfig, deps Dependencies) *Engine {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	auditRec := deps.Audit
	if auditRec == nil {
		auditRec = audit.NopRecorder{}
	}
	return &Engine{
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatch"}),
		templates: deps.Templates,
		prefs:     deps.Preferences,
		limiter:   deps.Limiter,
		queue:     deps.Digests,
		deliverer: deps.Deliverer,
		metrics:   deps.Metrics,
		audit:     auditRec,
	}
}

// Send validates, applies suppression and rate-limit policy, renders and
// delivers one notification. Suppressed sends short-circuit with success and
// consume no rate budget. No side effect occurs before validation passes.
func (e *Engine) Send(ctx context.Context, req *Request, caller Caller) Result {
	started := time.Now()
	defer e.recordDuration(ctx, "send", started)

	if err := ValidateRequest(req); err != nil {
		return e.failure(ctx, "send", req.To, caller, err)
	}

	if e.cfg.SuppressionEnabled {
		record, err := e.prefs.Get(ctx, req.To)
		if err != nil {
			return e.failure(ctx, "send", req.To, caller, err)
		}
		if record.Suppressed {
			e.logger.Info("send suppressed by recipient preference", map[string]interface{}{
				"to": record.Email,
			})
			e.recordDispatch(ctx, "send", "suppressed")
			e.audit.Record(ctx, audit.Entry{
				Operation: "send", To: req.To, Status: "suppressed",
				TenantID: caller.TenantID, UserID: caller.UserID,
			})
			caller.logEvent("notification.suppressed", map[string]interface{}{"to": req.To})
			return Result{Success: true, To: req.To, Suppressed: true}
		}
	}

	if err := e.limiter.Allow(ctx); err != nil {
		return e.failure(ctx, "send", req.To, caller, err)
	}

	subject, body, err := e.render(req)
	if err != nil {
		return e.failure(ctx, "send", req.To, caller, err)
	}

	msg := e.buildMessage(req, subject, body)

	// Delivery is slow fallible I/O; no engine lock is held here.
	if err := e.deliverer.Deliver(ctx, msg); err != nil {
		return e.failure(ctx, "send", req.To, caller, errors.NewDeliveryError(err))
	}

	if err := e.limiter.Record(ctx); err != nil {
		e.logger.Warn("rate limit increment failed after delivery", map[string]interface{}{
			"error": err,
		})
	}

	messageID := uuid.New().String()
	sentAt := time.Now().UTC().Format(time.RFC3339)

	e.logger.Info("notification sent", map[string]interface{}{
		"to":        req.To,
		"subject":   subject,
		"messageId": messageID,
	})
	e.recordDispatch(ctx, "send", "sent")
	e.audit.Record(ctx, audit.Entry{
		Operation: "send", To: req.To, Subject: subject, Status: "sent",
		TenantID: caller.TenantID, UserID: caller.UserID,
	})
	caller.logEvent("notification.sent", map[string]interface{}{
		"to":      req.To,
		"subject": subject,
	})

	return Result{
		Success:   true,
		To:        req.To,
		Subject:   subject,
		MessageID: messageID,
		SentAt:    sentAt,
	}
}

// QueueForDigest validates the request like a direct send and appends it to
// the recipient's digest queue. No delivery happens until the next flush.
func (e *Engine) QueueForDigest(ctx context.Context, req *Request, caller Caller) Result {
	started := time.Now()
	defer e.recordDuration(ctx, "digest.queue", started)

	if err := ValidateRequest(req); err != nil {
		return e.failure(ctx, "digest.queue", req.To, caller, err)
	}

	queuedAt := time.Now().UTC()
	key := preference.NormalizeAddress(req.To)
	count := e.queue.Enqueue(key, digest.Item{
		TemplateID: req.Template,
		Context:    req.Context,
		Subject:    req.Subject,
		Body:       req.Body,
		QueuedAt:   queuedAt,
	})

	e.recordDispatch(ctx, "digest.queue", "queued")
	caller.logEvent("notification.queued", map[string]interface{}{
		"to":          req.To,
		"queuedCount": count,
	})

	return Result{
		Success:     true,
		To:          req.To,
		QueuedCount: count,
		QueuedAt:    queuedAt.Format(time.RFC3339),
	}
}

// FlushDigests drains the whole digest queue, builds one combined message per
// recipient and delivers it. The queue is snapshotted and cleared before any
// delivery starts, so enqueues arriving mid-flush wait for the next cycle and
// a failed delivery is never reprocessed.
func (e *Engine) FlushDigests(ctx context.Context, caller Caller) Result {
	started := time.Now()
	defer e.recordDuration(ctx, "digest.flush", started)

	drained := e.queue.Drain()

	recipients := make([]string, 0, len(drained))
	for addr, items := range drained {
		if len(items) > 0 {
			recipients = append(recipients, addr)
		}
	}
	sort.Strings(recipients)

	var digests []DigestEntry
	for _, addr := range recipients {
		items := drained[addr]
		body := e.buildDigestBody(items)
		msg := delivery.Message{
			To:      addr,
			From:    e.cfg.DefaultFrom,
			Subject: fmt.Sprintf("Digest - %d updates", len(items)),
			Body:    body,
		}

		if err := e.deliverer.Deliver(ctx, msg); err != nil {
			// At-most-once per flush attempt: the drained items are not
			// re-queued, a later cycle simply sees fresh enqueues.
			e.logger.Error("digest delivery failed", map[string]interface{}{
				"to":    addr,
				"error": err,
			})
			e.recordDispatch(ctx, "digest.flush", "failed")
			e.audit.Record(ctx, audit.Entry{
				Operation: "digest.flush", To: addr, Status: "failed", Error: err.Error(),
				TenantID: caller.TenantID, UserID: caller.UserID,
			})
			continue
		}

		e.recordDispatch(ctx, "digest.flush", "sent")
		e.audit.Record(ctx, audit.Entry{
			Operation: "digest.flush", To: addr, Subject: msg.Subject, Status: "sent",
			TenantID: caller.TenantID, UserID: caller.UserID,
		})
		digests = append(digests, DigestEntry{To: addr, Count: len(items)})
	}

	e.recordDigests(ctx, int64(len(digests)))
	caller.logEvent("digests.flushed", map[string]interface{}{
		"digestsSent": len(digests),
	})

	return Result{
		Success:     true,
		DigestsSent: len(digests),
		SentAt:      time.Now().UTC().Format(time.RFC3339),
		Digests:     digests,
	}
}

// UpdatePreference replaces the preference record for the given address.
func (e *Engine) UpdatePreference(ctx context.Context, req *PreferenceRequest, caller Caller) Result {
	record, err := e.prefs.Update(ctx, req.Email, req.Suppressed, req.DigestOnly, preference.Frequency(req.Frequency))
	if err != nil {
		return e.failure(ctx, "preference.update", req.Email, caller, err)
	}

	caller.logEvent("preference.updated", map[string]interface{}{
		"email":      record.Email,
		"suppressed": record.Suppressed,
	})

	return Result{Success: true, Preference: &record}
}

// CheckPreference returns the stored or implicit default record for an
// address.
func (e *Engine) CheckPreference(ctx context.Context, req *PreferenceRequest, caller Caller) Result {
	if preference.NormalizeAddress(req.Email) == "" {
		return e.failure(ctx, "preference.check", req.Email, caller, errors.NewMissingEmailError())
	}

	record, err := e.prefs.Get(ctx, req.Email)
	if err != nil {
		return e.failure(ctx, "preference.check", req.Email, caller, err)
	}

	return Result{Success: true, Preference: &record}
}

// ValidateTemplate parses the given template text in isolation.
func (e *Engine) ValidateTemplate(ctx context.Context, templateText string, caller Caller) Result {
	if err := template.Validate(templateText); err != nil {
		result := e.failure(ctx, "template.validate", "", caller, err)
		result.Valid = boolPtr(false)
		return result
	}
	return Result{Success: true, Valid: boolPtr(true)}
}

// render resolves the request's content mode: template lookup plus rendering,
// or the literal subject/body verbatim.
func (e *Engine) render(req *Request) (string, string, error) {
	if req.Template != "" {
		return e.templates.Render(req.Template, req.Context)
	}
	return req.Subject, req.Body, nil
}

func (e *Engine) buildMessage(req *Request, subject, body string) delivery.Message {
	from := req.From
	if from == "" {
		from = e.cfg.DefaultFrom
	}
	return delivery.Message{
		To:      req.To,
		From:    from,
		Subject: subject,
		Body:    body,
		CC:      req.CC,
		BCC:     req.BCC,
		ReplyTo: req.ReplyTo,
	}
}

// buildDigestBody renders each queued item and concatenates the bodies under
// a count header and the fixed preferences footer.
func (e *Engine) buildDigestBody(items []digest.Item) string {
	plural := "s"
	if len(items) == 1 {
		plural = ""
	}
	body := fmt.Sprintf("You have %d notification%s:\n\n", len(items), plural)

	for i, item := range items {
		rendered := item.Body
		if item.TemplateID != "" {
			_, itemBody, err := e.templates.Render(item.TemplateID, item.Context)
			if err != nil {
				e.logger.Warn("skipping unrenderable digest item", map[string]interface{}{
					"templateId": item.TemplateID,
					"error":      err,
				})
				rendered = fmt.Sprintf("(notification %q could not be rendered)", item.TemplateID)
			} else {
				rendered = itemBody
			}
		}
		body += fmt.Sprintf("%d. %s\n\n", i+1, rendered)
	}

	return body + digestFooter
}

// failure converts any error into the uniform failed Result.
func (e *Engine) failure(ctx context.Context, operation, to string, caller Caller, err error) Result {
	stdErr := errors.Normalize(err)

	e.logger.WithError(stdErr).Warn("dispatch operation failed", map[string]interface{}{
		"operation": operation,
		"to":        to,
		"code":      string(stdErr.Code),
	})
	e.recordDispatch(ctx, operation, "failed")
	e.audit.Record(ctx, audit.Entry{
		Operation: operation, To: to, Status: "failed", Error: errorMessage(stdErr),
		TenantID: caller.TenantID, UserID: caller.UserID,
	})
	caller.logEvent("dispatch.failed", map[string]interface{}{
		"operation": operation,
		"code":      string(stdErr.Code),
	})

	return Result{Success: false, Error: errorMessage(stdErr)}
}

// errorMessage renders a StandardError as the Result error string. Delivery
// errors are prefixed so downstream transport failures stay distinguishable
// from policy failures.
func errorMessage(stdErr *errors.StandardError) string {
	if stdErr.Code == errors.ErrCodeDeliveryError {
		return fmt.Sprintf("delivery error: %s", stdErr.Details)
	}
	if stdErr.Details != "" {
		return fmt.Sprintf("%s (%s)", stdErr.Message, stdErr.Details)
	}
	return stdErr.Message
}

func (e *Engine) recordDispatch(ctx context.Context, operation, status string) {
	if e.metrics != nil {
		e.metrics.RecordDispatch(ctx, operation, status)
	}
}

func (e *Engine) recordDuration(ctx context.Context, operation string, started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordDuration(ctx, operation, time.Since(started))
	}
}

func (e *Engine) recordDigests(ctx context.Context, count int64) {
	if e.metrics != nil {
		e.metrics.RecordDigests(ctx, count)
	}
}
