package storage

import (
	"batepapo/backend/internal/apperr"
	"batepapo/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EventsChannel is the Redis channel carrying message log events.
const EventsChannel = "chat:events"

// ErrPubSubDisabled is returned by SubscribeEvents when no Redis is configured.
var ErrPubSubDisabled = errors.New("redis pub/sub not configured")

type Storage interface {
	Ready() bool

	CreateParticipant(ctx context.Context, p *models.Participant, status *models.Message) error
	FindParticipantByName(ctx context.Context, name string) (*models.Participant, error)
	TouchParticipant(ctx context.Context, id string, at time.Time) error
	DeleteParticipant(ctx context.Context, id string) (bool, error)
	EvictParticipant(ctx context.Context, id string, status *models.Message) (bool, error)
	ListParticipants(ctx context.Context) ([]models.Participant, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	FindMessageByID(ctx context.Context, id uint) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id uint) (bool, error)
	GetMessagesFor(ctx context.Context, name, broadcast string) ([]models.Message, error)

	PublishEvent(ctx context.Context, event models.Event) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	dialector gorm.Dialector
	redisOpts *redis.Options
	log       *slog.Logger
	ready     atomic.Bool
}

// NewStorageService Constructor. Nothing is opened until Connect.
// redisOpts may be nil, in which case events are not published.
func NewStorageService(dialector gorm.Dialector, redisOpts *redis.Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		dialector: dialector,
		redisOpts: redisOpts,
		log:       log,
	}
}

// Dialector picks the gorm dialector for a DB_DRIVER value.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

// RedisOptions parses REDIS_URL. An empty url yields nil options.
func RedisOptions(url string) (*redis.Options, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return opt, nil
}

// Connect opens the database, runs migrations and connects Redis.
// The service reports Ready only after every step succeeded.
func (s *Service) Connect(ctx context.Context) error {
	if s.Ready() {
		return nil
	}

	db, err := gorm.Open(s.dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("storage: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("storage: pool: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases in one place.
	if s.dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("storage: ping: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Participant{}, &models.Message{}); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("storage: migrate: %w", err)
	}

	var rdb *redis.Client
	if s.redisOpts != nil {
		rdb = redis.NewClient(s.redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = sqlDB.Close()
			return fmt.Errorf("redis: ping: %w", err)
		}
	}

	s.DB = db
	s.Redis = rdb
	s.ready.Store(true)
	s.log.Info("Store connected", "driver", s.dialector.Name(), "redis", rdb != nil)
	return nil
}

// Close releases the database pool and the Redis client.
func (s *Service) Close() error {
	if !s.ready.Swap(false) {
		return nil
	}

	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	} else {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ready reports whether Connect has completed.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// CreateParticipant inserts the participant and its "entered" status in one transaction.
// A duplicate name yields apperr.ErrConflict.
func (s *Service) CreateParticipant(ctx context.Context, p *models.Participant, status *models.Message) error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(status).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrConflict
	}
	return err
}

// FindParticipantByName returns nil without error when nobody holds the name.
func (s *Service) FindParticipantByName(ctx context.Context, name string) (*models.Participant, error) {
	if !s.Ready() {
		return nil, apperr.ErrNotReady
	}
	var p models.Participant
	err := s.DB.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TouchParticipant sets last_seen for the participant.
func (s *Service) TouchParticipant(ctx context.Context, id string, at time.Time) error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	return s.DB.WithContext(ctx).
		Model(&models.Participant{}).
		Where("id = ?", id).
		Update("last_seen", at).Error
}

// DeleteParticipant removes the participant and reports whether a row existed.
func (s *Service) DeleteParticipant(ctx context.Context, id string) (bool, error) {
	if !s.Ready() {
		return false, apperr.ErrNotReady
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Participant{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// EvictParticipant deletes the participant and appends its "left" status in one
// transaction. Nothing is appended when the participant was already gone.
func (s *Service) EvictParticipant(ctx context.Context, id string, status *models.Message) (bool, error) {
	if !s.Ready() {
		return false, apperr.ErrNotReady
	}
	evicted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		evicted = true
		return tx.Create(status).Error
	})
	if err != nil {
		return false, err
	}
	return evicted, nil
}

// ListParticipants returns every active participant ordered by name.
func (s *Service) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	if !s.Ready() {
		return nil, apperr.ErrNotReady
	}
	var participants []models.Participant
	if err := s.DB.WithContext(ctx).Order("name asc").Find(&participants).Error; err != nil {
		s.log.Error("Failed to list participants", "err", err)
		return nil, err
	}
	return participants, nil
}

// SaveMessage appends msg; the generated ID is written back into it.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	return s.DB.WithContext(ctx).Create(msg).Error
}

// FindMessageByID returns nil without error when the message does not exist.
func (s *Service) FindMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	if !s.Ready() {
		return nil, apperr.ErrNotReady
	}
	var msg models.Message
	err := s.DB.WithContext(ctx).First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage rewrites the mutable fields (to, text, type) of msg.
func (s *Service) UpdateMessage(ctx context.Context, msg *models.Message) error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	return s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"recipient": msg.To,
			"body":      msg.Text,
			"kind":      msg.Type,
		}).Error
}

// DeleteMessage removes the message and reports whether a row existed.
func (s *Service) DeleteMessage(ctx context.Context, id uint) (bool, error) {
	if !s.Ready() {
		return false, apperr.ErrNotReady
	}
	res := s.DB.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetMessagesFor returns, in insertion order, every message the named
// participant may read. Mirrors models.Message.VisibleTo.
func (s *Service) GetMessagesFor(ctx context.Context, name, broadcast string) ([]models.Message, error) {
	if !s.Ready() {
		return nil, apperr.ErrNotReady
	}
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("sender = ? OR recipient = ? OR recipient = ? OR kind = ?", name, name, broadcast, models.TypeMessage).
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		s.log.Error("Failed to get messages", "name", name, "err", err)
		return nil, err
	}
	return msgs, nil
}

// PublishEvent publishes the event on EventsChannel. Without Redis it is a no-op.
func (s *Service) PublishEvent(ctx context.Context, event models.Event) error {
	if !s.Ready() {
		return apperr.ErrNotReady
	}
	if s.Redis == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, EventsChannel, payload).Err()
}

// SubscribeEvents streams events published on EventsChannel until ctx is done.
func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.Event, error) {
	if !s.Ready() {
		return nil, apperr.ErrNotReady
	}
	if s.Redis == nil {
		return nil, ErrPubSubDisabled
	}

	pubsub := s.Redis.Subscribe(ctx, EventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe: %w", err)
	}

	out := make(chan models.Event)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("Failed to decode event", "err", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
