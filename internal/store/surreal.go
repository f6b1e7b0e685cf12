package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

const surrealDriver = "surreal"

// SurrealConfig holds the SurrealDB connection settings.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Pass      string
}

// SurrealStore persists messages in the "messages" table of SurrealDB.
// Record ids are the message ids; ts holds UnixNano for ordering.
type SurrealStore struct {
	db     *surrealdb.DB
	logger *slog.Logger
}

var _ Store = (*SurrealStore)(nil)

type surrealRow struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Room      string `json:"room"`
	Author    string `json:"author"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Edited    bool   `json:"edited"`
	TS        int64  `json:"ts"`
}

func (r surrealRow) toMessage() Message {
	return Message{
		ID:        r.ID,
		Kind:      Kind(r.Kind),
		Room:      r.Room,
		Author:    r.Author,
		To:        r.Recipient,
		Text:      r.Text,
		Edited:    r.Edited,
		CreatedAt: time.Unix(0, r.TS).UTC(),
	}
}

const surrealColumns = "meta::id(id) AS id, kind, room, author, recipient, text, edited, ts"

// ConnectSurreal signs in, selects the namespace and database, and returns the store.
func ConnectSurreal(ctx context.Context, cfg SurrealConfig, logger *slog.Logger) (*SurrealStore, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, wrap(surrealDriver, "connect", err)
	}

	if cfg.User != "" {
		if _, err = db.SignIn(ctx, &surrealdb.Auth{Username: cfg.User, Password: cfg.Pass}); err != nil {
			db.Close(ctx)
			return nil, wrap(surrealDriver, "sign in", err)
		}
	}

	if err = db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, wrap(surrealDriver, "use namespace", err)
	}

	logger = logger.With("store", surrealDriver)
	logger.Info("Successfully signed in to SurrealDB", "namespace", cfg.Namespace, "database", cfg.Database)
	return &SurrealStore{db: db, logger: logger}, nil
}

// surrealQuery runs a statement and decodes the first result set.
func surrealQuery[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func (s *SurrealStore) Append(ctx context.Context, msg *Message) (string, error) {
	if err := prepare(msg); err != nil {
		return "", err
	}

	query := `CREATE type::thing('messages', $id) CONTENT {
		kind: $kind,
		room: $room,
		author: $author,
		recipient: $recipient,
		text: $text,
		edited: false,
		ts: $ts
	}`
	params := map[string]any{
		"id":        msg.ID,
		"kind":      string(msg.Kind),
		"room":      msg.Room,
		"author":    msg.Author,
		"recipient": msg.To,
		"text":      msg.Text,
		"ts":        msg.CreatedAt.UnixNano(),
	}
	if _, err := surrealQuery[map[string]any](ctx, s.db, query, params); err != nil {
		return "", wrapQuery(surrealDriver, "append", query, err)
	}
	return msg.ID, nil
}

func (s *SurrealStore) Query(ctx context.Context, f Filter) ([]Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT " + surrealColumns + " FROM messages WHERE kind = $kind")
	params := map[string]any{"kind": string(f.Kind)}

	switch f.Kind {
	case KindRoom:
		b.WriteString(" AND room = $room")
		params["room"] = f.Room
	case KindDirect:
		b.WriteString(" AND ((author = $a AND recipient = $b) OR (author = $b AND recipient = $a))")
		params["a"] = f.Peers.A
		params["b"] = f.Peers.B
	}

	if f.Latest {
		b.WriteString(" ORDER BY ts DESC")
	} else {
		b.WriteString(" ORDER BY ts ASC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT $limit")
		params["limit"] = f.Limit
	}

	query := b.String()
	rows, err := surrealQuery[surrealRow](ctx, s.db, query, params)
	if err != nil {
		return nil, wrapQuery(surrealDriver, "query", query, err)
	}

	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	if f.Latest {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}

func (s *SurrealStore) Get(ctx context.Context, id string) (*Message, error) {
	query := "SELECT " + surrealColumns + " FROM type::thing('messages', $id)"
	rows, err := surrealQuery[surrealRow](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, wrapQuery(surrealDriver, "get", query, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	msg := rows[0].toMessage()
	return &msg, nil
}

func (s *SurrealStore) Update(ctx context.Context, id, text string) (*Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	query := "UPDATE type::thing('messages', $id) SET text = $text, edited = true"
	if _, err := surrealQuery[map[string]any](ctx, s.db, query, map[string]any{"id": id, "text": text}); err != nil {
		return nil, wrapQuery(surrealDriver, "update", query, err)
	}
	return s.Get(ctx, id)
}

func (s *SurrealStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	query := "DELETE type::thing('messages', $id)"
	if _, err := surrealQuery[map[string]any](ctx, s.db, query, map[string]any{"id": id}); err != nil {
		return wrapQuery(surrealDriver, "delete", query, err)
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}
