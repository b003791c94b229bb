// Package audit records dispatch outcomes for later inspection. Recording is
// fire-and-forget: an audit failure never fails the dispatch that produced it.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"notify-dispatch/internal/common/logger"
)

// Entry is one audited dispatch outcome.
type Entry struct {
	Operation string    `json:"operation"`
	To        string    `json:"to,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	TenantID  string    `json:"tenantId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder persists dispatch audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// NopRecorder discards all entries. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) {}

// ElasticRecorder indexes one document per dispatch outcome.
type ElasticRecorder struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewElasticRecorder creates an Elasticsearch-backed Recorder writing to the
// given index.
func NewElasticRecorder(client *elasticsearch.Client, index string, log logger.Logger) *ElasticRecorder {
	return &ElasticRecorder{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (r *ElasticRecorder) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn("failed to marshal audit entry", map[string]interface{}{"error": err})
		return
	}

	res, err := r.client.Index(r.index, bytes.NewReader(body), r.client.Index.WithContext(ctx))
	if err != nil {
		r.logger.Warn("failed to index audit entry", map[string]interface{}{"error": err})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		r.logger.Warn("audit index request rejected", map[string]interface{}{"status": res.Status()})
	}
}
