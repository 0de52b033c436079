package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func TestMessageRepo_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := NewMessageRepo(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS received_messages") {
		t.Errorf("unexpected exec %+v", db.execs)
	}
}

func TestMessageRepo_Save_FillsDefaults(t *testing.T) {
	db := &fakeDB{}
	msg := &ReceivedMessage{Exchange: "ex", Queue: "q", Body: "hello"}

	if err := NewMessageRepo(db).Save(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.ID == uuid.Nil {
		t.Error("ID should be generated")
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set")
	}

	args := db.execs[0].args
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if args[3] != (*string)(nil) {
		t.Errorf("empty message id should be NULL, got %v", args[3])
	}
	if args[4] != "hello" {
		t.Errorf("unexpected body arg %v", args[4])
	}
}

func TestMessageRepo_Save_KeepsGivenValues(t *testing.T) {
	db := &fakeDB{}
	id := uuid.New()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	msg := &ReceivedMessage{ID: id, MessageID: "m-1", ReceivedAt: at, Body: "x"}

	if err := NewMessageRepo(db).Save(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := db.execs[0].args
	if args[0] != id || args[5] != at {
		t.Errorf("given id/time should be kept, got %v %v", args[0], args[5])
	}
	if p, ok := args[3].(*string); !ok || *p != "m-1" {
		t.Errorf("unexpected message id arg %v", args[3])
	}
}

func TestMessageRepo_Save_Error(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}

	err := NewMessageRepo(db).Save(context.Background(), &ReceivedMessage{Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "insert received message") {
		t.Errorf("expected wrapped insert error, got %v", err)
	}
}

func TestNewPool_EmptyDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); !errors.Is(err, ErrEmptyDSN) {
		t.Errorf("expected ErrEmptyDSN, got %v", err)
	}
}
