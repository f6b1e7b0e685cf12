package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// messageRecord is the relational row for Message.
type messageRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Kind      string    `gorm:"size:16;index:idx_messages_scope,priority:1"`
	Room      string    `gorm:"size:128;index:idx_messages_scope,priority:2"`
	Author    string    `gorm:"size:128;index"`
	Recipient string    `gorm:"size:128;index"`
	Text      string    `gorm:"type:text"`
	Edited    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`
}

func (messageRecord) TableName() string { return "messages" }

func toRecord(m Message) messageRecord {
	return messageRecord{
		ID:        m.ID,
		Kind:      string(m.Kind),
		Room:      m.Room,
		Author:    m.Author,
		Recipient: m.To,
		Text:      m.Text,
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt,
	}
}

func (r messageRecord) toMessage() Message {
	return Message{
		ID:        r.ID,
		Kind:      Kind(r.Kind),
		Room:      r.Room,
		Author:    r.Author,
		To:        r.Recipient,
		Text:      r.Text,
		Edited:    r.Edited,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// SQLStore persists messages through GORM.
type SQLStore struct {
	db     *gorm.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// OpenSQL connects with the named dialect ("sqlite" or "postgres") and
// migrates the messages table.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, wrap(driver, "open", err)
	}
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, wrap(driver, "migrate", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Append(ctx context.Context, msg *Message) (string, error) {
	if err := prepare(msg); err != nil {
		return "", err
	}
	rec := toRecord(*msg)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", wrap(s.driver, "append", err)
	}
	return msg.ID, nil
}

func (s *SQLStore) Query(ctx context.Context, f Filter) ([]Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&messageRecord{}).Where("kind = ?", string(f.Kind))
	switch f.Kind {
	case KindRoom:
		q = q.Where("room = ?", f.Room)
	case KindDirect:
		a, b := f.Peers.A, f.Peers.B
		q = q.Where("(author = ? AND recipient = ?) OR (author = ? AND recipient = ?)", a, b, b, a)
	}

	if f.Latest {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("created_at ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var records []messageRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, wrap(s.driver, "query", err)
	}

	msgs := lo.Map(records, func(r messageRecord, _ int) Message { return r.toMessage() })
	if f.Latest {
		msgs = lo.Reverse(msgs)
	}
	return msgs, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Message, error) {
	var rec messageRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(s.driver, "get", err)
	}
	msg := rec.toMessage()
	return &msg, nil
}

func (s *SQLStore) Update(ctx context.Context, id, text string) (*Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&messageRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"text": text, "edited": true})
	if res.Error != nil {
		return nil, wrap(s.driver, "update", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&messageRecord{})
	if res.Error != nil {
		return wrap(s.driver, "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap(s.driver, "close", err)
	}
	return sqlDB.Close()
}
