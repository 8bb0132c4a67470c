// message_event.go — message_events 表 (原始流式事件, 事件粒度回放用)。
package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liuyingduo/petool-chat/internal/timeline"
	"github.com/liuyingduo/petool-chat/pkg/errors"
)

// MessageEvent 事件行。payload 原样存 JSONB, 不做结构校验。
type MessageEvent struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversation_id"`
	TurnID         string          `db:"turn_id" json:"turn_id"`
	Seq            int64           `db:"seq" json:"seq"`
	EventType      string          `db:"event_type" json:"event_type"`
	ToolCallID     string          `db:"tool_call_id" json:"tool_call_id,omitempty"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// Timeline 转为回放事件。payload 解析失败按空 map 处理。
func (e MessageEvent) Timeline() *timeline.Event {
	ev := &timeline.Event{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		TurnID:         e.TurnID,
		Seq:            e.Seq,
		EventType:      e.EventType,
		ToolCallID:     e.ToolCallID,
		CreatedAt:      e.CreatedAt,
	}
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &ev.Payload)
	}
	return ev
}

// NewMessageEvent 从内存事件构造行记录。
func NewMessageEvent(ev *timeline.Event) (*MessageEvent, error) {
	row := &MessageEvent{
		ID:             ev.ID,
		ConversationID: ev.ConversationID,
		TurnID:         ev.TurnID,
		Seq:            ev.Seq,
		EventType:      ev.EventType,
		ToolCallID:     ev.ToolCallID,
		CreatedAt:      ev.CreatedAt,
	}
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, errors.Wrap(err, "NewMessageEvent", "marshal payload")
		}
		row.Payload = raw
	}
	return row, nil
}

// MessageEventStore message_events 存储。
type MessageEventStore struct{ BaseStore }

// NewMessageEventStore 创建。
func NewMessageEventStore(pool *pgxpool.Pool) *MessageEventStore {
	return &MessageEventStore{NewBaseStore(pool)}
}

const evtCols = "id, conversation_id, turn_id, seq, event_type, tool_call_id, created_at, payload"

// Insert 写入单条事件, 重投递 (id 冲突) 静默忽略。
func (s *MessageEventStore) Insert(ctx context.Context, evt *MessageEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO message_events (id, conversation_id, turn_id, seq, event_type, tool_call_id, created_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		evt.ID, evt.ConversationID, evt.TurnID, evt.Seq, evt.EventType, evt.ToolCallID, evt.CreatedAt, evt.Payload)
	if err != nil {
		return errors.Wrap(err, "MessageEventStore.Insert", "insert event")
	}
	return nil
}

// ListByConversation 按 (created_at, seq) 升序返回原始事件。
func (s *MessageEventStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]MessageEvent, error) {
	sql, params := NewQueryBuilder().
		Eq("conversation_id", conversationID).
		Build("SELECT "+evtCols+" FROM message_events", "created_at ASC, seq ASC", limit)

	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "MessageEventStore.ListByConversation", "query events")
	}
	return collectRows[MessageEvent](rows)
}

// DeleteByConversation 清空会话的事件日志。
func (s *MessageEventStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM message_events WHERE conversation_id = $1", conversationID)
	if err != nil {
		return errors.Wrap(err, "MessageEventStore.DeleteByConversation", "delete events")
	}
	return nil
}

// TimelineEvents 返回会话的回放事件; 事件日志为空时退回旧数据合成
// (事件记录功能上线前的会话只有消息行)。
func (s *MessageEventStore) TimelineEvents(ctx context.Context, messages *MessageStore, conversationID string, limit int) ([]*timeline.Event, error) {
	rows, err := s.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		out := make([]*timeline.Event, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.Timeline())
		}
		return out, nil
	}

	msgs, err := messages.TimelineMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	return SynthesizeLegacyEvents(msgs), nil
}
