// message.go — messages 表 (消息粒度的持久化日志, hydration 的输入)。
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liuyingduo/petool-chat/internal/timeline"
	"github.com/liuyingduo/petool-chat/pkg/errors"
)

// Message 消息行。tool_calls 以 JSONB 存完整调用列表;
// tool_call_id / tool_name 仅 tool 角色填写, 用于把结果关联回调用。
type Message struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversation_id"`
	Role           string          `db:"role" json:"role"` // user | assistant | tool | system
	Content        string          `db:"content" json:"content"`
	Reasoning      *string         `db:"reasoning" json:"reasoning,omitempty"`
	ToolCalls      json.RawMessage `db:"tool_calls" json:"tool_calls,omitempty"`
	ToolCallID     string          `db:"tool_call_id" json:"tool_call_id,omitempty"`
	ToolName       string          `db:"tool_name" json:"tool_name,omitempty"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
}

// Timeline 转为 hydration 输入。tool_calls 解析失败按空列表处理。
func (m Message) Timeline() timeline.Message {
	out := timeline.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		ToolCallID:     m.ToolCallID,
		ToolName:       m.ToolName,
		CreatedAt:      m.CreatedAt,
	}
	if m.Reasoning != nil {
		out.Reasoning = *m.Reasoning
	}
	if len(m.ToolCalls) > 0 {
		_ = json.Unmarshal(m.ToolCalls, &out.ToolCalls)
	}
	return out
}

// MessageStore messages 存储。
type MessageStore struct{ BaseStore }

// NewMessageStore 创建。
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{NewBaseStore(pool)}
}

const msgCols = "id, conversation_id, role, content, reasoning, tool_calls, tool_call_id, tool_name, created_at"

// Insert 写入单条消息。
func (s *MessageStore) Insert(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, reasoning, tool_calls, tool_call_id, tool_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Reasoning, msg.ToolCalls, msg.ToolCallID, msg.ToolName, msg.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "MessageStore.Insert", "insert message")
	}
	return nil
}

// ListByConversation 按时间升序返回会话消息。
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	sql, params := NewQueryBuilder().
		Eq("conversation_id", conversationID).
		Build("SELECT "+msgCols+" FROM messages", "created_at ASC", limit)

	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "MessageStore.ListByConversation", "query messages")
	}
	return collectRows[Message](rows)
}

// TimelineMessages ListByConversation 的 hydration 口径版本。
func (s *MessageStore) TimelineMessages(ctx context.Context, conversationID string, limit int) ([]timeline.Message, error) {
	rows, err := s.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]timeline.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Timeline())
	}
	return out, nil
}
