// Package natsutil provides typed JSON publish/subscribe over NATS with
// OpenTelemetry trace propagation, plus the audit event emitted for each
// knowledge query.
package natsutil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// QuerySubject is the subject audit events are published on.
const QuerySubject = "forge.knowledge.query"

// QueryEvent is the audit record for one knowledge query.
type QueryEvent struct {
	Question   string    `json:"question"`
	UserTrust  int       `json:"user_trust"`
	Complexity string    `json:"complexity,omitempty"`
	RowCount   int       `json:"row_count"`
	Truncated  bool      `json:"truncated"`
	Confidence float64   `json:"confidence"`
	Elapsed    float64   `json:"elapsed_seconds"`
	At         time.Time `json:"at"`
}

// carrier adapts nats.Msg headers to the OTel TextMapCarrier interface.
type carrier nats.Msg

func (c *carrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *carrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *carrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish marshals v as JSON and publishes it, injecting the trace
// context from ctx into the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*carrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a JSON-typed handler. The trace context is
// extracted from message headers; messages that fail to decode are
// dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*carrier)(msg))
		handler(ctx, v)
	})
}
