package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type testMsg struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type recordingPublisher struct {
	msgs []*nats.Msg
	err  error
}

func (p *recordingPublisher) PublishMsg(msg *nats.Msg) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func withTraceContext(t *testing.T) context.Context {
	t.Helper()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}

	keys := carrier.Keys()
	if len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNatsHeaderCarrierNilHeader(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}

func TestPublishInjectsTraceAndJSON(t *testing.T) {
	ctx := withTraceContext(t)
	pub := &recordingPublisher{}

	if err := Publish(ctx, pub, "medrag.test", testMsg{Name: "a", Value: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != "medrag.test" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	var got testMsg
	if err := json.Unmarshal(msg.Data, &got); err != nil || got.Value != 1 {
		t.Fatalf("unexpected payload %s (%v)", msg.Data, err)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}
}

func TestPublishWrapsError(t *testing.T) {
	boom := errors.New("connection closed")
	err := Publish(context.Background(), &recordingPublisher{err: boom}, "medrag.test", testMsg{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestHandlerExtractsTrace(t *testing.T) {
	ctx := withTraceContext(t)
	msg, err := NewMsg(ctx, "medrag.test", testMsg{Name: "b", Value: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotTrace trace.TraceID
	var gotVal testMsg
	Handler(func(ctx context.Context, _ *nats.Msg, v testMsg) error {
		gotTrace = trace.SpanContextFromContext(ctx).TraceID()
		gotVal = v
		return nil
	}, nil)(msg)

	if gotTrace != trace.SpanContextFromContext(ctx).TraceID() {
		t.Fatalf("trace not propagated: %v", gotTrace)
	}
	if gotVal.Name != "b" {
		t.Fatalf("unexpected value %+v", gotVal)
	}
}

func TestHandlerReportsMalformedAndFailures(t *testing.T) {
	var errs []error
	onErr := func(_ *nats.Msg, err error) { errs = append(errs, err) }
	called := false
	h := Handler(func(context.Context, *nats.Msg, testMsg) error {
		called = true
		return errors.New("handler failed")
	}, onErr)

	h(&nats.Msg{Subject: "s", Data: []byte("{invalid json")})
	if called {
		t.Fatal("handler should not have been called for malformed message")
	}
	h(&nats.Msg{Subject: "s", Data: []byte(`{"name":"ok"}`)})
	if len(errs) != 2 {
		t.Fatalf("expected 2 reported errors, got %v", errs)
	}
}

func TestRespondSkipsWithoutReply(t *testing.T) {
	pub := &recordingPublisher{}
	if err := Respond(context.Background(), pub, &nats.Msg{}, testMsg{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Respond(context.Background(), pub, &nats.Msg{Reply: "_INBOX.1"}, testMsg{Value: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != "_INBOX.1" {
		t.Fatalf("unexpected published messages %+v", pub.msgs)
	}
}
