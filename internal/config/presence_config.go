package config

import "time"

const (
	// Audience
	BroadcastTarget = "Todos"

	// Status markers
	StatusEntered = "entra na sala..."
	StatusLeft    = "sai da sala..."

	// Message time stamp, HH:MM:SS of insertion
	TimeLayout = "15:04:05"

	// Presence
	DefaultSweepInterval    = 15 * time.Second
	DefaultStaleThreshold   = 10 * time.Second
	DefaultSweepConcurrency = 8

	// Store
	DefaultConnectRetry = 2 * time.Second
	DefaultTokenTTL     = 24 * time.Hour
)
