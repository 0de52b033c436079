package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ReceivedMessage — сообщение, полученное consumer'ом.
type ReceivedMessage struct {
	ID         uuid.UUID
	Exchange   string
	Queue      string
	MessageID  string
	Body       string
	ReceivedAt time.Time
}

// DB — часть pgxpool.Pool, нужная репозиторию.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MessageRepo — архив полученных сообщений.
type MessageRepo struct {
	db DB
}

// NewMessageRepo создаёт новый MessageRepo.
func NewMessageRepo(db DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS received_messages (
		id          uuid PRIMARY KEY,
		exchange    text        NOT NULL,
		queue       text        NOT NULL,
		message_id  text,
		body        text        NOT NULL,
		received_at timestamptz NOT NULL
	)
`

// EnsureSchema создаёт таблицу архива, если её нет.
func (r *MessageRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create received_messages: %w", err)
	}
	return nil
}

// Save сохраняет полученное сообщение. Пустые ID и ReceivedAt заполняются.
func (r *MessageRepo) Save(ctx context.Context, msg *ReceivedMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO received_messages (id, exchange, queue, message_id, body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.Exchange,
		msg.Queue,
		nullString(msg.MessageID),
		msg.Body,
		msg.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert received message: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
