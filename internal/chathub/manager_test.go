package chathub_test

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/chathub"
	"batepapo/backend/internal/models"
	"batepapo/backend/internal/storage"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockClient is a test double for the chathub.Client interface.
type mockClient struct {
	name string
	send chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockClient(name string, buffer int) *mockClient {
	return &mockClient{name: name, send: make(chan models.Event, buffer)}
}

func (c *mockClient) GetName() string                     { return c.name }
func (c *mockClient) GetSendChannel() chan<- models.Event { return c.send }
func (c *mockClient) Run()                                {}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeSource hands out one events channel after failing a number of times.
type fakeSource struct {
	mu       sync.Mutex
	failures []error
	events   chan models.Event
}

func (s *fakeSource) SubscribeEvents(ctx context.Context) (<-chan models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	return s.events, nil
}

func startHub(t *testing.T, hub *chathub.ManagerService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
}

func received(t *testing.T, c *mockClient) (models.Event, bool) {
	t.Helper()
	select {
	case e := <-c.send:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return models.Event{}, false
	}
}

func TestManager_RegisterUnregister(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	startHub(t, hub)
	clientA := newMockClient("alice", 1)

	require.True(t, hub.Register(clientA))
	hub.Unregister(clientA)

	assert.Eventually(t, clientA.isClosed, time.Second, 10*time.Millisecond)
}

func TestManager_DeliversOnlyVisibleEvents(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	startHub(t, hub)
	alice := newMockClient("alice", 4)
	bob := newMockClient("bob", 4)
	carol := newMockClient("carol", 4)
	for _, c := range []*mockClient{alice, bob, carol} {
		require.True(t, hub.Register(c))
	}

	hub.EventCh <- models.Event{Kind: models.EventCreated, Message: models.Message{
		ID: 1, From: "alice", To: "bob", Text: "psiu", Type: models.TypePrivateMessage,
	}}

	e, ok := received(t, alice)
	require.True(t, ok, "author sees own private message")
	assert.Equal(t, "psiu", e.Message.Text)
	_, ok = received(t, bob)
	assert.True(t, ok, "recipient sees private message")
	_, ok = received(t, carol)
	assert.False(t, ok, "others do not")
}

func TestManager_BroadcastReachesEveryone(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	startHub(t, hub)
	alice := newMockClient("alice", 1)
	bob := newMockClient("bob", 1)
	require.True(t, hub.Register(alice))
	require.True(t, hub.Register(bob))

	hub.EventCh <- models.Event{Kind: models.EventCreated, Message: models.Message{
		From: "carol", To: "Todos", Text: "sai da sala...", Type: models.TypeStatus,
	}}

	_, ok := received(t, alice)
	assert.True(t, ok)
	_, ok = received(t, bob)
	assert.True(t, ok)
}

func TestManager_ReplacesConnectionForSameName(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	startHub(t, hub)
	first := newMockClient("alice", 1)
	second := newMockClient("alice", 1)

	require.True(t, hub.Register(first))
	require.True(t, hub.Register(second))
	hub.Unregister(first) // stale unregister must not drop the new connection

	hub.EventCh <- models.Event{Kind: models.EventCreated, Message: models.Message{From: "bob", To: "Todos", Type: models.TypeMessage}}

	_, ok := received(t, second)
	assert.True(t, ok)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
}

func TestManager_DropsSlowClient(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	startHub(t, hub)
	slow := newMockClient("alice", 0)
	require.True(t, hub.Register(slow))

	hub.EventCh <- models.Event{Kind: models.EventCreated, Message: models.Message{From: "bob", To: "Todos", Type: models.TypeMessage}}

	assert.Eventually(t, slow.isClosed, time.Second, 10*time.Millisecond)
}

func TestManager_StopClosesClients(t *testing.T) {
	hub := chathub.NewManagerService(nil, nil, discard)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	client := newMockClient("alice", 1)
	require.True(t, hub.Register(client))

	cancel()
	<-hub.Done()

	assert.True(t, client.isClosed())
	assert.False(t, hub.Register(newMockClient("bob", 1)), "a stopped hub refuses clients")
}

func TestManager_ListenerForwardsAfterRetry(t *testing.T) {
	source := &fakeSource{
		failures: []error{apperr.ErrNotReady},
		events:   make(chan models.Event, 1),
	}
	hub := chathub.NewManagerService(source, nil, discard)
	startHub(t, hub)
	alice := newMockClient("alice", 1)
	require.True(t, hub.Register(alice))

	source.events <- models.Event{Kind: models.EventDeleted, Message: models.Message{ID: 9, From: "bob", To: "Todos", Type: models.TypeMessage}}

	select {
	case e := <-alice.send:
		assert.Equal(t, models.EventDeleted, e.Kind)
		assert.Equal(t, uint(9), e.Message.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("event was not forwarded from the source")
	}
}

func TestManager_ListenerStopsWhenDisabled(t *testing.T) {
	source := &fakeSource{failures: []error{storage.ErrPubSubDisabled}}
	hub := chathub.NewManagerService(source, nil, discard)
	startHub(t, hub)

	client := newMockClient("alice", 1)
	assert.True(t, hub.Register(client), "the hub keeps serving without realtime events")
}

func TestManager_TouchCallsActivity(t *testing.T) {
	var got []string
	hub := chathub.NewManagerService(nil, func(ctx context.Context, name string) error {
		got = append(got, name)
		return apperr.ErrNotFound
	}, discard)

	hub.Touch(context.Background(), "alice")

	assert.Equal(t, []string{"alice"}, got)
}
