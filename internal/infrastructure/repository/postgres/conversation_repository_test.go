package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

func TestEnsureConversationReturnsMessageCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ConversationRepository{db: db}

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("t-1", "s-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT tenant_id, session_id, message_count").
		WithArgs("t-1", "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "session_id", "message_count", "created_at", "updated_at"}).
			AddRow("t-1", "s-1", 4, now, now))

	conv, err := repo.EnsureConversation(context.Background(), "t-1", "s-1")
	if err != nil {
		t.Fatalf("EnsureConversation() error = %v", err)
	}
	if conv.MessageCount != 4 {
		t.Fatalf("expected message count 4, got %d", conv.MessageCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendMessageBumpsCountInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &ConversationRepository{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs("m-1", "t-1", "s-1", "user", "hello", string(domain.ChannelWeb), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE conversations").
		WithArgs("t-1", "s-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.AppendMessage(context.Background(), domain.ConversationMessage{
		ID:        "m-1",
		TenantID:  "t-1",
		SessionID: "s-1",
		Role:      "user",
		Content:   "hello",
		Channel:   domain.ChannelWeb,
	})
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
