// Package presence tracks which participants are in the room.
//
// Registry is a single-writer actor: join, heartbeat, leave and eviction
// are queued as commands and applied one at a time by Run, so store writes
// for the same name never interleave. Sweeper periodically evicts the
// participants whose last heartbeat is too old.
package presence

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/config"
	"batepapo/backend/internal/models"
	"batepapo/backend/internal/storage"
	"batepapo/backend/internal/validation"
	"context"
	"errors"
	"log/slog"
	"time"
)

type opKind int

const (
	opJoin opKind = iota
	opHeartbeat
	opLeave
	opEvict
)

type command struct {
	op     opKind
	name   string
	id     string
	cutoff time.Time
	reply  chan result
}

type result struct {
	participant *models.Participant
	evicted     bool
	err         error
}

// Registry owns every mutation of the participant collection.
type Registry struct {
	Storage   storage.Storage
	Validator *validation.Validator

	commands chan command
	now      func() time.Time
	log      *slog.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry creates a Registry. Nothing is processed until Run is started.
func NewRegistry(s storage.Storage, v *validation.Validator, opts ...Option) *Registry {
	r := &Registry{
		Storage:   s,
		Validator: v,
		commands:  make(chan command),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the registry clock reading.
func (r *Registry) Now() time.Time {
	return r.now().UTC()
}

// Run applies queued commands until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	r.log.Info("Presence registry started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Presence registry stopped")
			return
		case cmd := <-r.commands:
			cmd.reply <- r.apply(ctx, cmd)
		}
	}
}

// Join registers name and appends its "entered" status in the same unit.
// Fails with a ValidationError for a bad name and ErrConflict when the name is taken.
func (r *Registry) Join(ctx context.Context, name string) (*models.Participant, error) {
	clean, err := r.Validator.Participant(name)
	if err != nil {
		return nil, err
	}
	res, err := r.submit(ctx, command{op: opJoin, name: clean})
	if err != nil {
		return nil, err
	}
	return res.participant, nil
}

// Heartbeat renews the participant's lastSeen. Fails with ErrNotFound for unknown names.
func (r *Registry) Heartbeat(ctx context.Context, name string) error {
	_, err := r.submit(ctx, command{op: opHeartbeat, name: r.Validator.Sanitize(name)})
	return err
}

// Leave removes the participant by id without any status message.
// A second Leave for the same id fails with ErrNotFound.
func (r *Registry) Leave(ctx context.Context, id string) error {
	_, err := r.submit(ctx, command{op: opLeave, id: id})
	return err
}

// Evict removes p and appends its "left" status, provided the same identity
// is still registered under p.Name and was last seen before cutoff.
// It reports whether anything was removed.
func (r *Registry) Evict(ctx context.Context, p models.Participant, cutoff time.Time) (bool, error) {
	res, err := r.submit(ctx, command{op: opEvict, name: p.Name, id: p.ID, cutoff: cutoff})
	if err != nil {
		return false, err
	}
	return res.evicted, nil
}

// List returns the active participants. Reads do not go through the actor.
func (r *Registry) List(ctx context.Context) ([]models.Participant, error) {
	participants, err := r.Storage.ListParticipants(ctx)
	if err != nil {
		return nil, wrapStore(err)
	}
	return participants, nil
}

// Lookup returns the active participant called name, or ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, name string) (*models.Participant, error) {
	p, err := r.Storage.FindParticipantByName(ctx, name)
	if err != nil {
		return nil, wrapStore(err)
	}
	if p == nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (r *Registry) submit(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case r.commands <- cmd:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (r *Registry) apply(ctx context.Context, cmd command) result {
	switch cmd.op {
	case opJoin:
		return r.join(ctx, cmd.name)
	case opHeartbeat:
		return result{err: r.heartbeat(ctx, cmd.name)}
	case opLeave:
		return result{err: r.leave(ctx, cmd.id)}
	case opEvict:
		return r.evict(ctx, cmd)
	default:
		return result{err: errors.New("presence: unknown command")}
	}
}

func (r *Registry) join(ctx context.Context, name string) result {
	existing, err := r.Storage.FindParticipantByName(ctx, name)
	if err != nil {
		return result{err: wrapStore(err)}
	}
	if existing != nil {
		return result{err: apperr.ErrConflict}
	}

	now := r.Now()
	p := &models.Participant{Name: name, LastSeen: now}
	status := statusMessage(name, config.StatusEntered, now)
	if err := r.Storage.CreateParticipant(ctx, p, status); err != nil {
		return result{err: wrapStore(err)}
	}

	r.publish(ctx, status)
	r.log.Info("Participant joined", "name", name, "id", p.ID)
	return result{participant: p}
}

func (r *Registry) heartbeat(ctx context.Context, name string) error {
	p, err := r.Storage.FindParticipantByName(ctx, name)
	if err != nil {
		return wrapStore(err)
	}
	if p == nil {
		return apperr.ErrNotFound
	}
	if err := r.Storage.TouchParticipant(ctx, p.ID, r.Now()); err != nil {
		return wrapStore(err)
	}
	return nil
}

func (r *Registry) leave(ctx context.Context, id string) error {
	deleted, err := r.Storage.DeleteParticipant(ctx, id)
	if err != nil {
		return wrapStore(err)
	}
	if !deleted {
		return apperr.ErrNotFound
	}
	r.log.Info("Participant left", "id", id)
	return nil
}

func (r *Registry) evict(ctx context.Context, cmd command) result {
	current, err := r.Storage.FindParticipantByName(ctx, cmd.name)
	if err != nil {
		return result{err: wrapStore(err)}
	}
	// Gone, rejoined under a new identity, or renewed since the snapshot.
	if current == nil || current.ID != cmd.id || !current.LastSeen.Before(cmd.cutoff) {
		return result{}
	}

	status := statusMessage(current.Name, config.StatusLeft, r.Now())
	evicted, err := r.Storage.EvictParticipant(ctx, current.ID, status)
	if err != nil {
		return result{err: wrapStore(err)}
	}
	if evicted {
		r.publish(ctx, status)
		r.log.Info("Participant swept", "name", current.Name, "lastSeen", current.LastSeen)
	}
	return result{evicted: evicted}
}

func (r *Registry) publish(ctx context.Context, msg *models.Message) {
	if err := r.Storage.PublishEvent(ctx, models.Event{Kind: models.EventCreated, Message: *msg}); err != nil {
		r.log.Warn("Failed to publish status event", "name", msg.From, "err", err)
	}
}

func statusMessage(name, text string, at time.Time) *models.Message {
	return &models.Message{
		From: name,
		To:   config.BroadcastTarget,
		Text: text,
		Type: models.TypeStatus,
		Time: at.Format(config.TimeLayout),
	}
}

// wrapStore keeps the domain error kinds and wraps anything else as ErrStore.
func wrapStore(err error) error {
	switch {
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrNotReady),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.Store(err)
	}
}
