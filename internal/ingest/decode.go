// Package ingest 上游事件流接入: WebSocket 订阅、帧解码、落库与时间线投递。
package ingest

import (
	"encoding/json"

	"github.com/liuyingduo/petool-chat/internal/timeline"
	"github.com/liuyingduo/petool-chat/pkg/errors"
)

// turn 结束由上游带内信号表示 (没有该信号时会话保持流式状态)。
const frameTurnEnded = "turn_ended"

// wireFrame 上游帧。字段与 timeline.Event 同构, 外加 turn_ended 控制帧。
type wireFrame struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	TurnID         string         `json:"turnId"`
	Seq            int64          `json:"seq"`
	EventType      string         `json:"eventType"`
	ToolCallID     string         `json:"toolCallId"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      string         `json:"createdAt"`
}

// DecodeFrame 解析一帧。返回 (事件, 是否 turn 结束信号, 错误)。
// turn_ended 帧返回只带会话/回合 id 的事件与 true。payload 缺失或
// 字段不全不报错, 交由时间线按空值归一化。
func DecodeFrame(data []byte) (*timeline.Event, bool, error) {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, false, errors.Wrap(err, "Ingest.DecodeFrame", "unmarshal frame")
	}
	if frame.ConversationID == "" {
		return nil, false, errors.Wrap(errors.ErrInvalidInput, "Ingest.DecodeFrame", "missing conversationId")
	}
	if frame.EventType == frameTurnEnded {
		return &timeline.Event{ConversationID: frame.ConversationID, TurnID: frame.TurnID}, true, nil
	}

	return &timeline.Event{
		ID:             frame.ID,
		ConversationID: frame.ConversationID,
		TurnID:         frame.TurnID,
		Seq:            frame.Seq,
		EventType:      frame.EventType,
		ToolCallID:     frame.ToolCallID,
		Payload:        frame.Payload,
		CreatedAt:      frame.CreatedAt,
	}, false, nil
}

// isAssistantEvent 助手侧事件到达意味着该会话处于流式中。
func isAssistantEvent(eventType string) bool {
	switch eventType {
	case timeline.EventAssistantText, timeline.EventAssistantReasoning,
		timeline.EventAssistantToolCall, timeline.EventAssistantToolResult:
		return true
	default:
		return false
	}
}
