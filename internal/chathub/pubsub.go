package chathub

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/models"
	"batepapo/backend/internal/storage"
	"context"
	"errors"
	"time"
)

const subscribeRetry = time.Second

// StartPubSubListener subscribes to the event source in the background and
// forwards every event into EventCh. It keeps retrying while the store is
// not connected yet.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	go func() {
		for {
			events, err := m.Events.SubscribeEvents(ctx)
			switch {
			case err == nil:
				m.log.Info("Realtime listener subscribed")
				m.forward(ctx, events)
				if ctx.Err() != nil {
					return
				}
				m.log.Warn("Realtime subscription ended, resubscribing")
			case errors.Is(err, storage.ErrPubSubDisabled):
				m.log.Info("Realtime events disabled: no Redis configured")
				return
			case !errors.Is(err, apperr.ErrNotReady):
				m.log.Error("Failed to subscribe to events", "err", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(subscribeRetry):
			}
		}
	}()
}

func (m *ManagerService) forward(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			select {
			case m.EventCh <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
