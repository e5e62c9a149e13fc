// Package natsutil provides typed NATS publish, queue-subscribe and reply
// helpers with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// MsgPublisher is the part of *nats.Conn used to publish.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NewMsg encodes v as JSON into a message for subject, injecting the trace
// context from ctx into its headers.
func NewMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// Publish serializes v as JSON and publishes to the given subject.
func Publish[T any](ctx context.Context, nc MsgPublisher, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Handler decodes JSON messages of type T and calls handle with the trace
// context extracted from the headers. Malformed messages, and errors from
// handle, go to onErr when it is set; otherwise they are dropped.
func Handler[T any](handle func(context.Context, *nats.Msg, T) error, onErr func(*nats.Msg, error)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			if onErr != nil {
				onErr(msg, fmt.Errorf("natsutil: decode %s: %w", msg.Subject, err))
			}
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		if err := handle(ctx, msg, v); err != nil && onErr != nil {
			onErr(msg, err)
		}
	}
}

// QueueSubscribe registers Handler(handle, onErr) in a queue group, so
// several consumers share one subject's load.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, handle func(context.Context, *nats.Msg, T) error, onErr func(*nats.Msg, error)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, Handler(handle, onErr))
}

// Respond answers a request message with v encoded as JSON. Messages without
// a reply subject are ignored.
func Respond[T any](ctx context.Context, nc MsgPublisher, req *nats.Msg, v T) error {
	if req.Reply == "" {
		return nil
	}
	return Publish(ctx, nc, req.Reply, v)
}
