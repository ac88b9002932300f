// Package messaging implements the chat message log: posting, reading by
// audience, and author-only edit and delete.
package messaging

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/models"
	"batepapo/backend/internal/storage"
	"batepapo/backend/internal/validation"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// ParticipantLookup resolves an active participant by name.
// presence.Registry satisfies it.
type ParticipantLookup interface {
	Lookup(ctx context.Context, name string) (*models.Participant, error)
}

// Log is the message log service.
type Log struct {
	Storage      storage.Storage
	Participants ParticipantLookup
	Validator    *validation.Validator

	now func() time.Time
	log *slog.Logger
}

// NewLog creates a message log. now may be nil to use time.Now.
func NewLog(s storage.Storage, participants ParticipantLookup, v *validation.Validator, now func() time.Time, log *slog.Logger) *Log {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Log{Storage: s, Participants: participants, Validator: v, now: now, log: log}
}

// Post validates req, resolves the sender and appends the message.
func (l *Log) Post(ctx context.Context, from string, req models.MessageRequest) (*models.Message, error) {
	sender, body, err := l.normalize(from, req)
	if err != nil {
		return nil, err
	}

	if _, err := l.Participants.Lookup(ctx, sender); err != nil {
		return nil, err
	}

	msg := &models.Message{
		From: sender,
		To:   body.To,
		Text: body.Text,
		Type: body.Type,
		Time: l.now().UTC().Format(config.TimeLayout),
	}
	if err := l.Storage.SaveMessage(ctx, msg); err != nil {
		return nil, wrapStore(err)
	}

	l.publish(ctx, models.EventCreated, msg)
	return msg, nil
}

// ListFor returns the messages visible to name in insertion order,
// trimmed to the last limit entries when limit is positive.
func (l *Log) ListFor(ctx context.Context, name string, limit int) ([]models.Message, error) {
	reader, err := l.Validator.Requester(name)
	if err != nil {
		return nil, err
	}
	msgs, err := l.Storage.GetMessagesFor(ctx, reader, config.BroadcastTarget)
	if err != nil {
		return nil, wrapStore(err)
	}
	return LimitTail(msgs, limit), nil
}

// Edit replaces to, text and type of the message. id, from and time are kept.
func (l *Log) Edit(ctx context.Context, id uint, requester string, req models.MessageRequest) (*models.Message, error) {
	author, body, err := l.normalize(requester, req)
	if err != nil {
		return nil, err
	}

	msg, err := l.owned(ctx, id, author)
	if err != nil {
		return nil, err
	}

	msg.To = body.To
	msg.Text = body.Text
	msg.Type = body.Type
	if err := l.Storage.UpdateMessage(ctx, msg); err != nil {
		return nil, wrapStore(err)
	}

	l.publish(ctx, models.EventEdited, msg)
	return msg, nil
}

// Delete removes the message if requester wrote it.
func (l *Log) Delete(ctx context.Context, id uint, requester string) error {
	author, err := l.Validator.Requester(requester)
	if err != nil {
		return err
	}

	msg, err := l.owned(ctx, id, author)
	if err != nil {
		return err
	}

	deleted, err := l.Storage.DeleteMessage(ctx, id)
	if err != nil {
		return wrapStore(err)
	}
	if !deleted {
		return apperr.ErrNotFound
	}

	l.publish(ctx, models.EventDeleted, msg)
	return nil
}

// LimitTail returns the last limit messages when 0 < limit < len(msgs),
// and msgs unchanged otherwise.
func LimitTail(msgs []models.Message, limit int) []models.Message {
	if limit <= 0 || limit >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}

// ParseLimit reads the limit query value. Absent, non-numeric, zero and
// negative values all mean "no limit" and yield 0.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// normalize validates both the requester identity and the body, reporting
// every failing field together.
func (l *Log) normalize(requester string, req models.MessageRequest) (string, models.MessageRequest, error) {
	name, nameErr := l.Validator.Requester(requester)
	body, bodyErr := l.Validator.Message(req)
	if nameErr == nil && bodyErr == nil {
		return name, body, nil
	}

	merged := &apperr.ValidationError{}
	for _, err := range []error{nameErr, bodyErr} {
		var verr *apperr.ValidationError
		switch {
		case err == nil:
		case errors.As(err, &verr):
			merged.Fields = append(merged.Fields, verr.Fields...)
		default:
			return "", models.MessageRequest{}, err
		}
	}
	return "", models.MessageRequest{}, merged
}

func (l *Log) owned(ctx context.Context, id uint, requester string) (*models.Message, error) {
	msg, err := l.Storage.FindMessageByID(ctx, id)
	if err != nil {
		return nil, wrapStore(err)
	}
	if msg == nil {
		return nil, apperr.ErrNotFound
	}
	if msg.From != requester {
		return nil, apperr.ErrForbidden
	}
	return msg, nil
}

func (l *Log) publish(ctx context.Context, kind string, msg *models.Message) {
	if err := l.Storage.PublishEvent(ctx, models.Event{Kind: kind, Message: *msg}); err != nil {
		l.log.Warn("Failed to publish message event", "kind", kind, "id", msg.ID, "err", err)
	}
}

func wrapStore(err error) error {
	if errors.Is(err, apperr.ErrNotReady) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Store(err)
}
