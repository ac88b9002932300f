package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is an active member of the room.
// A row exists only while the participant is present; leaving or being
// swept deletes it.
type Participant struct {
	ID       string    `gorm:"primaryKey" json:"id"` // UUID
	Name     string    `gorm:"uniqueIndex;not null" json:"name"`
	LastSeen time.Time `gorm:"not null;index" json:"lastSeen"`
}

// BeforeCreate is a GORM hook that assigns a new UUID when ID is not set yet.
func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// IsStale reports whether more than threshold has elapsed between LastSeen and now.
// A participant exactly at the threshold is still fresh.
func (p Participant) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeen) > threshold
}
