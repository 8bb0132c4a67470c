// conversation.go — conversations 表 CRUD。
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liuyingduo/petool-chat/pkg/errors"
)

// Conversation 会话记录。时间戳存 RFC3339 字符串 (与事件排序口径一致)。
type Conversation struct {
	ID        string `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

// ConversationStore conversations 存储。
type ConversationStore struct{ BaseStore }

// NewConversationStore 创建。
func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{NewBaseStore(pool)}
}

const convCols = "id, title, created_at, updated_at"

// Create 新建会话, id 缺省时生成 uuid。
func (s *ConversationStore) Create(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if c.CreatedAt == "" {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "ConversationStore.Create", "insert conversation")
	}
	return nil
}

// Get 按 id 查询, 不存在返回 ErrNotFound。
func (s *ConversationStore) Get(ctx context.Context, id string) (*Conversation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+convCols+" FROM conversations WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "ConversationStore.Get", "query conversation")
	}
	conv, err := collectOne[Conversation](rows)
	if err != nil {
		return nil, errors.Wrap(err, "ConversationStore.Get", "query conversation")
	}
	if conv == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "ConversationStore.Get", "conversation not found")
	}
	return conv, nil
}

// List 按更新时间倒序列出会话, keyword 对标题做模糊匹配。
func (s *ConversationStore) List(ctx context.Context, keyword string, limit int) ([]Conversation, error) {
	sql, params := NewQueryBuilder().
		KeywordLike(keyword, "title").
		Build("SELECT "+convCols+" FROM conversations", "updated_at DESC", limit)

	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "ConversationStore.List", "query conversations")
	}
	return collectRows[Conversation](rows)
}

// UpdateTitle 重命名会话。
func (s *ConversationStore) UpdateTitle(ctx context.Context, id, title string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tag, err := s.pool.Exec(ctx,
		"UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3",
		title, now, id)
	if err != nil {
		return errors.Wrap(err, "ConversationStore.UpdateTitle", "update title")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(errors.ErrNotFound, "ConversationStore.UpdateTitle", "conversation not found")
	}
	return nil
}

// Touch 刷新 updated_at (收到新事件时调用)。
func (s *ConversationStore) Touch(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.pool.Exec(ctx,
		"UPDATE conversations SET updated_at = $1 WHERE id = $2", now, id)
	if err != nil {
		return errors.Wrap(err, "ConversationStore.Touch", "update timestamp")
	}
	return nil
}

// Delete 删除会话 (消息与事件随外键级联删除)。
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "ConversationStore.Delete", "delete conversation")
	}
	return nil
}
