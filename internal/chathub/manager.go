// Package chathub fans message log events out to connected realtime
// clients. A single goroutine (Run) owns the client set; events arrive
// from Redis pub/sub so every server instance sees every change.
package chathub

import (
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/models"
	"context"
	"log/slog"
)

// EventSource streams message log events. storage.Service satisfies it.
type EventSource interface {
	SubscribeEvents(ctx context.Context) (<-chan models.Event, error)
}

// ActivityFunc records that a participant is still around.
type ActivityFunc func(ctx context.Context, name string) error

type ManagerService struct {
	Clients map[string]Client

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client
	EventCh      chan models.Event

	Events     EventSource
	OnActivity ActivityFunc

	done chan struct{}
	log  *slog.Logger
}

// NewManagerService creates the hub. events may be nil when realtime is disabled.
func NewManagerService(events EventSource, onActivity ActivityFunc, log *slog.Logger) *ManagerService {
	if log == nil {
		log = slog.Default()
	}
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventCh:      make(chan models.Event, 64),
		Events:       events,
		OnActivity:   onActivity,
		done:         make(chan struct{}),
		log:          log,
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Register hands a client to the hub. It reports false when the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes a client from the hub if the hub is still running.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Touch forwards client activity as a heartbeat.
func (m *ManagerService) Touch(ctx context.Context, name string) {
	if m.OnActivity == nil {
		return
	}
	if err := m.OnActivity(ctx, name); err != nil {
		m.log.Debug("Heartbeat from realtime client rejected", "name", name, "err", err)
	}
}

// Run owns the client set until ctx is done, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	if m.Events != nil {
		m.StartPubSubListener(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for name, client := range m.Clients {
				client.Close()
				delete(m.Clients, name)
			}
			return

		case client := <-m.RegisterCh:
			name := client.GetName()
			if previous, ok := m.Clients[name]; ok && previous != client {
				previous.Close()
				m.log.Info("Replaced realtime connection", "name", name)
			}
			m.Clients[name] = client
			m.log.Info("Realtime client registered", "name", name, "clients", len(m.Clients))

		case client := <-m.UnregisterCh:
			name := client.GetName()
			if current, ok := m.Clients[name]; ok && current == client {
				delete(m.Clients, name)
				client.Close()
				m.log.Info("Realtime client unregistered", "name", name, "clients", len(m.Clients))
			}

		case event := <-m.EventCh:
			m.deliver(event)
		}
	}
}

func (m *ManagerService) deliver(event models.Event) {
	for name, client := range m.Clients {
		if !event.Message.VisibleTo(name, config.BroadcastTarget) {
			continue
		}
		select {
		case client.GetSendChannel() <- event:
		default:
			// Slow consumer: drop the connection rather than block the hub.
			m.log.Warn("Realtime client too slow, dropping", "name", name)
			delete(m.Clients, name)
			client.Close()
		}
	}
}
