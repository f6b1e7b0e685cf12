package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const badgerDriver = "badger"

// BadgerStore persists messages in an embedded BadgerDB.
//
// Layout:
//
//	msg:{id}                                  -> JSON message
//	idx:{kind}:{hex(scope)}:{unixnano %019d}:{id} -> empty
//
// The zero-padded timestamp keeps index keys in chronological order, so a
// prefix scan yields a scope's messages ascending (reverse scan for newest).
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (or creates) a database at path. An empty path opens an
// in-memory instance.
func OpenBadger(path string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, wrap(badgerDriver, "open", err)
	}
	return &BadgerStore{db: db, logger: logger.With("store", badgerDriver)}, nil
}

func primaryKey(id string) []byte {
	return []byte("msg:" + id)
}

func scopeOf(kind Kind, room string, a, b string) string {
	switch kind {
	case KindRoom:
		return room
	case KindDirect:
		if a > b {
			a, b = b, a
		}
		return a + "\x00" + b
	}
	return ""
}

func scopePrefix(kind Kind, scope string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s:", kind, hex.EncodeToString([]byte(scope))))
}

func indexKey(m Message) []byte {
	prefix := scopePrefix(m.Kind, scopeOf(m.Kind, m.Room, m.Author, m.To))
	return append(prefix, []byte(fmt.Sprintf("%019d:%s", m.CreatedAt.UnixNano(), m.ID))...)
}

func (s *BadgerStore) Append(_ context.Context, msg *Message) (string, error) {
	if err := prepare(msg); err != nil {
		return "", err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", wrap(badgerDriver, "encode", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primaryKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(*msg), nil)
	})
	if err != nil {
		return "", wrap(badgerDriver, "append", err)
	}
	return msg.ID, nil
}

func (s *BadgerStore) Query(_ context.Context, f Filter) ([]Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var a, b string
	if f.Peers != nil {
		a, b = f.Peers.A, f.Peers.B
	}
	prefix := scopePrefix(f.Kind, scopeOf(f.Kind, f.Room, a, b))

	var msgs []Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = f.Latest
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if f.Latest {
			seek = append(append([]byte{}, prefix...), 0xff)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if f.Limit > 0 && len(msgs) == f.Limit {
				break
			}
			key := it.Item().Key()
			id := string(key[len(prefix)+20:])
			msg, err := s.load(txn, id)
			if err != nil {
				return err
			}
			msgs = append(msgs, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(badgerDriver, "query", err)
	}

	if f.Latest {
		msgs = lo.Reverse(msgs)
	}
	return msgs, nil
}

func (s *BadgerStore) load(txn *badger.Txn, id string) (*Message, error) {
	item, err := txn.Get(primaryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var msg Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*Message, error) {
	var msg *Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		msg, err = s.load(txn, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(badgerDriver, "get", err)
	}
	return msg, nil
}

func (s *BadgerStore) Update(_ context.Context, id, text string) (*Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	var updated *Message
	err := s.db.Update(func(txn *badger.Txn) error {
		msg, err := s.load(txn, id)
		if err != nil {
			return err
		}
		msg.Text = text
		msg.Edited = true
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		updated = msg
		return txn.Set(primaryKey(id), data)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(badgerDriver, "update", err)
	}
	return updated, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		msg, err := s.load(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(indexKey(*msg)); err != nil {
			return err
		}
		return txn.Delete(primaryKey(id))
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return wrap(badgerDriver, "delete", err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	s.logger.Debug("closing badger store")
	return s.db.Close()
}
