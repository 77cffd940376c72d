package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/config"
	"minimalapi/school/internal/student"
)

const (
	natsProbeName  = "nats"
	subjectPrefix  = "students."
	streamSubjects = subjectPrefix + ">"
)

// jsContext is the subset of nats.JetStreamContext used for stream management
// and event publishing. Defining an interface here allows test doubles to be
// injected without a live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSClient provisions the student event stream, publishes lifecycle events
// to it and probes NATS health. The connection is opened on first use and
// shared by all later calls until Close.
type NATSClient struct {
	url    string
	stream string
	maxAge time.Duration
	cb     *gobreaker.CircuitBreaker
	newJS  func(url string) (jsContext, func(), error)

	mu      sync.Mutex
	js      jsContext
	cleanup func()
}

// NewNATSClient constructs a NATSClient. No connection is made at construction
// time.
func NewNATSClient(cfg config.EventsConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:    cfg.URL,
		stream: cfg.Stream,
		maxAge: cfg.MaxAge,
		cb:     cb,
		newJS:  realNewJS,
	}
}

// ProvisionStreams creates or updates the student event stream. It is
// idempotent: an existing stream is updated rather than errored. The entire
// operation is wrapped in the circuit breaker.
func (c *NATSClient) ProvisionStreams(_ context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		js, err := c.conn()
		if err != nil {
			return nil, err
		}
		return nil, c.provisionStream(js)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Probe verifies NATS connectivity. A missing stream is not a failure; it only
// means bootstrap has not provisioned it yet.
func (c *NATSClient) Probe(_ context.Context) bootstrap.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, err := c.conn()
		if err != nil {
			return nil, err
		}
		_, infoErr := js.StreamInfo(c.stream)
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return bootstrap.ProbeResult{
			Name:      natsProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     probeError(err),
		}
	}

	return bootstrap.ProbeResult{
		Name:      natsProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Publish sends e to students.<action> and waits for the JetStream ack.
func (c *NATSClient) Publish(ctx context.Context, e student.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", e.ID, err)
	}
	subject := subjectPrefix + e.Action

	_, err = c.cb.Execute(func() (any, error) {
		js, err := c.conn()
		if err != nil {
			return nil, err
		}
		if _, err := js.Publish(subject, data, nats.Context(ctx), nats.MsgId(e.ID)); err != nil {
			return nil, fmt.Errorf("publishing to %s: %w", subject, err)
		}
		return nil, nil
	})
	return err
}

// Close releases the shared connection, if one was opened.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanup != nil {
		c.cleanup()
	}
	c.js, c.cleanup = nil, nil
}

// conn returns the shared JetStream context, connecting on first use.
func (c *NATSClient) conn() (jsContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.js != nil {
		return c.js, nil
	}
	js, cleanup, err := c.newJS(c.url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	c.js, c.cleanup = js, cleanup
	return js, nil
}

// provisionStream creates the stream if it does not exist, or updates it if it
// does. nats.ErrStreamNotFound signals "create"; any other error is returned.
func (c *NATSClient) provisionStream(js jsContext) error {
	cfg := &nats.StreamConfig{
		Name:      c.stream,
		Subjects:  []string{streamSubjects},
		Retention: nats.LimitsPolicy,
		MaxAge:    c.maxAge,
	}

	_, err := js.StreamInfo(c.stream)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(cfg); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", c.stream, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", c.stream, err)
	default:
		if _, updErr := js.UpdateStream(cfg); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", c.stream, updErr)
		}
	}
	return nil
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus a
// cleanup function that drains and closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url, nats.Name("school"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { _ = nc.Drain() }, nil
}
