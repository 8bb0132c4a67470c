package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	connStr := os.Getenv("TEST_POSTGRES_CONNECTION_STRING")
	if connStr == "" {
		t.Skip("TEST_POSTGRES_CONNECTION_STRING not set")
	}
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("connect to db: %v", err)
	}
	return pool
}

func TestConversationStore(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	convs := NewConversationStore(pool)
	ctx := context.Background()

	pool.Exec(ctx, "DELETE FROM conversations WHERE title LIKE 'test-conv-%'")

	t.Run("Create_Then_Get", func(t *testing.T) {
		c := &Conversation{Title: "test-conv-1"}
		if err := convs.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		if c.ID == "" {
			t.Fatal("id should be generated")
		}

		got, err := convs.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Title != "test-conv-1" {
			t.Errorf("title = %q", got.Title)
		}
	})

	t.Run("List_Keyword", func(t *testing.T) {
		convs.Create(ctx, &Conversation{Title: "test-conv-keyword-match"})
		list, err := convs.List(ctx, "keyword-match", 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("matched %d conversations", len(list))
		}
	})

	t.Run("Delete_Cascades", func(t *testing.T) {
		c := &Conversation{Title: "test-conv-cascade"}
		convs.Create(ctx, c)

		msgs := NewMessageStore(pool)
		msgs.Insert(ctx, &Message{ConversationID: c.ID, Role: "user", Content: "hi"})

		if err := convs.Delete(ctx, c.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		left, err := msgs.ListByConversation(ctx, c.ID, 10)
		if err != nil {
			t.Fatalf("list after delete: %v", err)
		}
		if len(left) != 0 {
			t.Errorf("messages not cascaded: %d left", len(left))
		}
	})
}
