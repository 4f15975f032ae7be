package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// NoopClient drops every message. It is used when no queue is configured.
type NoopClient struct{}

func (NoopClient) Send(context.Context, Message) error { return nil }

var _ Client = NoopClient{}
