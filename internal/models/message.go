package models

import "time"

const (
	TypeMessage        = "message"
	TypePrivateMessage = "private_message"
	TypeStatus         = "status"
)

// Message is one entry of the chat log.
// Columns avoid the SQL keywords from/to/time.
type Message struct {
	// ID is assigned by the store and grows with insertion order.
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// From is the author; for status entries it is the affected participant.
	From string `gorm:"column:sender;type:text;not null;index" json:"from"`
	// To is a participant name or the broadcast target.
	To string `gorm:"column:recipient;type:text;not null;index" json:"to"`
	// Text is the sanitized body.
	Text string `gorm:"column:body;type:text;not null" json:"text"`
	// Type is one of message, private_message or status.
	Type string `gorm:"column:kind;type:text;not null" json:"type"`
	// Time is the HH:MM:SS stamp of insertion. Edits keep it.
	Time string `gorm:"column:sent_time;type:text;not null" json:"time"`

	CreatedAt time.Time `json:"-"`
}

// VisibleTo reports whether the named participant may read this message:
// they wrote it, it is addressed to them or to the broadcast target, or it
// is a public message.
func (m Message) VisibleTo(name, broadcast string) bool {
	return m.From == name || m.To == name || m.To == broadcast || m.Type == TypeMessage
}
