package chathub

import "batepapo/backend/internal/models"

// Client is one realtime connection of a participant.
// It abstracts the underlying transport so the hub can manage clients uniformly.
type Client interface {
	// GetName returns the participant name the connection belongs to.
	GetName() string

	// GetSendChannel returns the channel the hub writes events to.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the client. Only the hub calls it, exactly once.
	Close()
}
