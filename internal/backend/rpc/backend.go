// Package rpc implements the AMQP-based RPC worker farm backend of
// spec §4.6, grounded on the teacher's channel-based resource-transfer
// idiom (internal/driver/backend) generalized from HTTP to a
// publish/consume correlation-id round trip, using
// rabbitmq/amqp091-go and google/uuid for correlation identifiers
// (both precedented in the retrieval pack's other example manifests).
package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

// Config holds the AMQP connection and routing parameters (spec §6).
// RecognitionID identifies the model the routing key targets, matching
// the Python client's recognition_version_id (original_source
// deepoctl/workflow_abstraction.py's RpcRecognition), carried in every
// command envelope so a shared exchange can demultiplex by model.
type Config struct {
	URL           string
	Exchange      string
	RoutingKey    string
	RecognitionID string
}

type replyMsg struct {
	status string
	errMsg string
	record *predict.Record
}

// Backend implements backend.Backend by publishing a protobuf-encoded
// command per frame and awaiting a correlation-matched reply on an
// exclusive response queue.
type Backend struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	cfg        Config
	replyQueue string
	log        pipelog.Logger

	mu      sync.Mutex
	results map[string]replyMsg
}

// New dials the AMQP broker, opens a channel, declares an exclusive
// auto-delete response queue, and starts the single consumer goroutine
// that demultiplexes replies by correlation id (spec §4.6, §5:
// "single consumer on the response channel").
func New(cfg Config, log pipelog.Logger) (*Backend, error) {
	if log == nil {
		log = pipelog.Nop()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %q: %w", cfg.URL, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	b := &Backend{
		conn:       conn,
		ch:         ch,
		cfg:        cfg,
		replyQueue: q.Name,
		log:        log,
		results:    map[string]replyMsg{},
	}
	go b.consume(deliveries)
	return b, nil
}

func (b *Backend) consume(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		status, errMsg, record, err := decodeReply(d.Body)
		if err != nil {
			b.log.Error("rpc: failed to decode reply", pipelog.Error(err))
			continue
		}
		b.mu.Lock()
		b.results[d.CorrelationId] = replyMsg{status: status, errMsg: errMsg, record: record}
		b.mu.Unlock()
	}
}

// Infer implements backend.Backend.
func (b *Backend) Infer(ctx context.Context, encoded []byte, frameName string) (backend.PendingResult, error) {
	corrID := uuid.NewString()
	body, err := encodeCommand(b.cfg.RecognitionID, frameName, encoded)
	if err != nil {
		return nil, err
	}
	err = b.ch.PublishWithContext(ctx, b.cfg.Exchange, b.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:   "application/x-protobuf",
		CorrelationId: corrID,
		ReplyTo:       b.replyQueue,
		Body:          body,
	})
	if err != nil {
		return nil, &backend.InferError{FrameName: frameName, Code: "publish_failed", Err: err}
	}
	return &pendingResult{backend: b, corrID: corrID, frameName: frameName}, nil
}

// Close tears down the channel and connection (spec §4.6: "close()
// tears down the channel and response queue").
func (b *Backend) Close() error {
	b.ch.Close()
	return b.conn.Close()
}

type pendingResult struct {
	backend   *Backend
	corrID    string
	frameName string
}

// Await polls the correlation-indexed result map with a small inner
// interval, looped until the caller's outer timeout expires (spec
// §4.6, matching the original's 10ms poll).
func (p *pendingResult) Await(ctx context.Context, timeout time.Duration) (*predict.Record, error) {
	const pollInterval = 10 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		p.backend.mu.Lock()
		msg, found := p.backend.results[p.corrID]
		if found {
			delete(p.backend.results, p.corrID)
		}
		p.backend.mu.Unlock()
		if found {
			if msg.status == "failed" {
				return nil, &backend.InferError{FrameName: p.frameName, Code: "task_failed", Err: fmt.Errorf("%s", msg.errMsg)}
			}
			return msg.record, nil
		}
		if time.Now().After(deadline) {
			return nil, &backend.TimeoutError{FrameName: p.frameName}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
