package models_test

import (
	"batepapo/backend/internal/models"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestParticipantBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestParticipantBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	p := &models.Participant{Name: "alice", LastSeen: time.Now()}
	assert.Empty(t, p.ID, "Participant ID should be empty before BeforeCreate")

	// Act
	err := p.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	// Assert
	assert.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	parsed, parseErr := uuid.Parse(p.ID)
	assert.NoError(t, parseErr, "Participant ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestParticipantBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestParticipantBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	p := &models.Participant{ID: existingID, Name: "bob"}

	err := p.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, p.ID)
}

// TestParticipantBeforeCreate_MultipleParticipants verifies unique UUIDs are generated.
func TestParticipantBeforeCreate_MultipleParticipants(t *testing.T) {
	participants := []*models.Participant{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	generated := make(map[string]bool)

	for _, p := range participants {
		assert.NoError(t, p.BeforeCreate(nil))
		assert.NotContains(t, generated, p.ID, "Each participant should have a unique ID")
		generated[p.ID] = true
	}

	assert.Len(t, generated, len(participants))
}

// TestParticipantStructTags catches accidental tag removal during refactoring.
func TestParticipantStructTags(t *testing.T) {
	pType := reflect.TypeOf(models.Participant{})

	idField, found := pType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	nameField, found := pType.FieldByName("Name")
	assert.True(t, found)
	assert.Contains(t, nameField.Tag.Get("gorm"), "uniqueIndex", "Name must stay unique among active participants")
	assert.Equal(t, "name", nameField.Tag.Get("json"))
}

func TestParticipantIsStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	threshold := 10 * time.Second

	tests := []struct {
		name     string
		lastSeen time.Time
		stale    bool
	}{
		{name: "just seen", lastSeen: now, stale: false},
		{name: "within threshold", lastSeen: now.Add(-9 * time.Second), stale: false},
		{name: "exactly at threshold", lastSeen: now.Add(-threshold), stale: false},
		{name: "past threshold", lastSeen: now.Add(-threshold - time.Millisecond), stale: true},
		{name: "long gone", lastSeen: now.Add(-time.Hour), stale: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.Participant{Name: "alice", LastSeen: tt.lastSeen}
			assert.Equal(t, tt.stale, p.IsStale(now, threshold))
		})
	}
}

func TestMessageVisibleTo(t *testing.T) {
	const everyone = "Todos"

	tests := []struct {
		name    string
		msg     models.Message
		reader  string
		visible bool
	}{
		{
			name:    "own private message",
			msg:     models.Message{From: "alice", To: "bob", Type: models.TypePrivateMessage},
			reader:  "alice",
			visible: true,
		},
		{
			name:    "private message addressed to reader",
			msg:     models.Message{From: "alice", To: "bob", Type: models.TypePrivateMessage},
			reader:  "bob",
			visible: true,
		},
		{
			name:    "private message to someone else",
			msg:     models.Message{From: "alice", To: "bob", Type: models.TypePrivateMessage},
			reader:  "carol",
			visible: false,
		},
		{
			name:    "status to everyone",
			msg:     models.Message{From: "alice", To: everyone, Type: models.TypeStatus},
			reader:  "carol",
			visible: true,
		},
		{
			name:    "public message to a named recipient",
			msg:     models.Message{From: "alice", To: "bob", Type: models.TypeMessage},
			reader:  "carol",
			visible: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, tt.msg.VisibleTo(tt.reader, everyone))
		})
	}
}
