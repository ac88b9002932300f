package models

const (
	EventCreated = "created"
	EventEdited  = "edited"
	EventDeleted = "deleted"
)

// Event is a change to the message log as fanned out to realtime clients.
type Event struct {
	Kind    string  `json:"kind"`
	Message Message `json:"message"`
}

// JoinRequest is the body of POST /participants.
type JoinRequest struct {
	Name string `json:"name"`
}

// MessageRequest is the body of POST and PUT /messages.
type MessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}
