package clients

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minimalapi/school/internal/config"
	"minimalapi/school/internal/student"
)

// fakeJS is a test double for jsContext. It records calls and returns
// preconfigured responses.
type fakeJS struct {
	mu sync.Mutex

	// streamInfoErr is keyed by stream name; a nil value means "stream exists".
	streamInfoErr map[string]error

	addStreamErr    error
	updateStreamErr error
	publishErr      error

	addStreamCalls    []*nats.StreamConfig
	updateStreamCalls []*nats.StreamConfig
	published         map[string][]byte
}

func (f *fakeJS) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	err, ok := f.streamInfoErr[stream]
	if !ok || err == nil {
		return &nats.StreamInfo{}, nil
	}
	return nil, err
}

func (f *fakeJS) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.addStreamCalls = append(f.addStreamCalls, cfg)
	return &nats.StreamInfo{}, f.addStreamErr
}

func (f *fakeJS) UpdateStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.updateStreamCalls = append(f.updateStreamCalls, cfg)
	return &nats.StreamInfo{}, f.updateStreamErr
}

func (f *fakeJS) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	if f.published == nil {
		f.published = map[string][]byte{}
	}
	f.published[subj] = data
	return &nats.PubAck{Stream: "STUDENTS"}, nil
}

// makeNATSClient builds a NATSClient backed by the provided fakeJS and counts
// how often a connection is opened.
func makeNATSClient(js jsContext, cb *gobreaker.CircuitBreaker) (*NATSClient, *int) {
	dials := 0
	return &NATSClient{
		url:    "nats://localhost:4222",
		stream: "STUDENTS",
		maxAge: 168 * time.Hour,
		cb:     cb,
		newJS: func(_ string) (jsContext, func(), error) {
			dials++
			return js, func() {}, nil
		},
	}, &dials
}

// makeNATSClientWithConnErr builds a NATSClient whose connection always fails.
func makeNATSClientWithConnErr(connErr error, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:    "nats://localhost:4222",
		stream: "STUDENTS",
		cb:     cb,
		newJS: func(_ string) (jsContext, func(), error) {
			return nil, func() {}, connErr
		},
	}
}

func TestNewNATSClient(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("new-nats-test")
	cfg := config.EventsConfig{URL: "nats://nats:4222", Stream: "STUDENTS", MaxAge: time.Hour}
	client := NewNATSClient(cfg, cb)

	assert.NotNil(t, client)
	assert.Equal(t, "nats://nats:4222", client.url)
	assert.Equal(t, "STUDENTS", client.stream)
	assert.Equal(t, time.Hour, client.maxAge)
	assert.NotNil(t, client.newJS)
}

func TestProvisionStreams_New(t *testing.T) {
	t.Parallel()

	js := &fakeJS{streamInfoErr: map[string]error{"STUDENTS": nats.ErrStreamNotFound}}

	client, _ := makeNATSClient(js, NewCircuitBreaker("provision-new"))
	err := client.ProvisionStreams(context.Background())

	require.NoError(t, err)
	require.Len(t, js.addStreamCalls, 1)
	assert.Empty(t, js.updateStreamCalls)

	cfg := js.addStreamCalls[0]
	assert.Equal(t, "STUDENTS", cfg.Name)
	assert.Equal(t, []string{"students.>"}, cfg.Subjects)
	assert.Equal(t, 168*time.Hour, cfg.MaxAge)
}

func TestProvisionStreams_Existing(t *testing.T) {
	t.Parallel()

	// A nil error in streamInfoErr means the stream exists.
	js := &fakeJS{streamInfoErr: map[string]error{"STUDENTS": nil}}

	client, _ := makeNATSClient(js, NewCircuitBreaker("provision-existing"))
	err := client.ProvisionStreams(context.Background())

	require.NoError(t, err)
	assert.Empty(t, js.addStreamCalls)
	require.Len(t, js.updateStreamCalls, 1)
	assert.Equal(t, "STUDENTS", js.updateStreamCalls[0].Name)
}

func TestProvisionStreams_AddStreamError(t *testing.T) {
	t.Parallel()

	js := &fakeJS{
		streamInfoErr: map[string]error{"STUDENTS": nats.ErrStreamNotFound},
		addStreamErr:  errors.New("server unavailable"),
	}

	client, _ := makeNATSClient(js, NewCircuitBreaker("provision-add-err"))
	err := client.ProvisionStreams(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server unavailable")
}

func TestProvisionStreams_StreamInfoError(t *testing.T) {
	t.Parallel()

	js := &fakeJS{streamInfoErr: map[string]error{"STUDENTS": errors.New("jetstream not enabled")}}

	client, _ := makeNATSClient(js, NewCircuitBreaker("provision-info-err"))
	err := client.ProvisionStreams(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying stream STUDENTS")
}

func TestProvisionStreams_CircuitBreakerOpensAfterThreeFailures(t *testing.T) {
	t.Parallel()

	connErr := errors.New("dial tcp: connection refused")
	client := makeNATSClientWithConnErr(connErr, NewCircuitBreaker("provision-cb-open"))

	for i := range 3 {
		err := client.ProvisionStreams(context.Background())
		require.Error(t, err, "attempt %d should fail", i+1)
		assert.NotContains(t, err.Error(), "circuit open",
			"circuit should not be open yet on attempt %d", i+1)
	}

	// The 4th call must be rejected by the open circuit breaker.
	err := client.ProvisionStreams(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestNATSProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		infoErr    error
		wantOK     bool
		wantErrSub string
	}{
		{name: "stream exists", wantOK: true},
		// NATS is up, the stream is just not provisioned yet.
		{name: "stream not found is ok", infoErr: nats.ErrStreamNotFound, wantOK: true},
		{name: "stream info fails", infoErr: errors.New("timeout"), wantOK: false, wantErrSub: "stream info"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			js := &fakeJS{streamInfoErr: map[string]error{"STUDENTS": tc.infoErr}}
			client, _ := makeNATSClient(js, NewCircuitBreaker("probe-"+tc.name))
			result := client.Probe(context.Background())

			assert.Equal(t, natsProbeName, result.Name)
			assert.Equal(t, tc.wantOK, result.OK)
			if tc.wantErrSub != "" {
				assert.Contains(t, result.Error, tc.wantErrSub)
			} else {
				assert.Empty(t, result.Error)
			}
		})
	}
}

func TestNATSProbe_CircuitOpenAfterThreeFailures(t *testing.T) {
	t.Parallel()

	connErr := errors.New("connection refused")
	client := makeNATSClientWithConnErr(connErr, NewCircuitBreaker("probe-cb-open"))

	for i := range 3 {
		result := client.Probe(context.Background())
		assert.False(t, result.OK, "probe %d should fail", i+1)
		assert.Contains(t, result.Error, "connection refused")
	}

	result := client.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "circuit open", result.Error)
}

func TestPublish(t *testing.T) {
	t.Parallel()

	js := &fakeJS{}
	client, dials := makeNATSClient(js, NewCircuitBreaker("publish"))

	event := student.Event{
		ID:         "evt-1",
		Action:     student.ActionCreated,
		StudentID:  4,
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Student:    &student.Snapshot{FirstName: "Ada", LastName: "Lovelace", BirthDate: "1815-12-10"},
	}
	require.NoError(t, client.Publish(context.Background(), event))
	require.NoError(t, client.Publish(context.Background(), student.Event{ID: "evt-2", Action: student.ActionDeleted, StudentID: 4}))

	assert.Equal(t, 1, *dials, "connection is shared across calls")

	raw, ok := js.published["students.created"]
	require.True(t, ok)
	var decoded student.Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 4, decoded.StudentID)
	assert.Equal(t, "Ada", decoded.Student.FirstName)

	_, ok = js.published["students.deleted"]
	assert.True(t, ok)

	client.Close()
	require.NoError(t, client.Publish(context.Background(), event))
	assert.Equal(t, 2, *dials, "Close drops the shared connection")
}

func TestPublish_Error(t *testing.T) {
	t.Parallel()

	js := &fakeJS{publishErr: errors.New("no responders")}
	client, _ := makeNATSClient(js, NewCircuitBreaker("publish-err"))

	err := client.Publish(context.Background(), student.Event{ID: "e", Action: student.ActionUpdated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "students.updated")
}
