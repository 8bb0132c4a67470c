// legacy.go — 事件日志上线前的旧会话: 从消息行合成等价的事件流。
package store

import (
	"fmt"

	"github.com/liuyingduo/petool-chat/internal/timeline"
)

// SynthesizeLegacyEvents 把消息粒度日志展开为事件流, 供事件粒度回放
// 路径统一消费。纯函数。
//
// 回合划分: 每条 user 消息开启新回合, 回合 id 为 legacy-turn-N;
// 事件 id 为 legacy-{message_id}-{seq}, 保证重复合成结果稳定。
func SynthesizeLegacyEvents(messages []timeline.Message) []*timeline.Event {
	var out []*timeline.Event
	turn := 0
	seq := int64(0)

	emit := func(msg timeline.Message, eventType, toolCallID string, payload map[string]any) {
		seq++
		out = append(out, &timeline.Event{
			ID:             fmt.Sprintf("legacy-%s-%d", msg.ID, seq),
			ConversationID: msg.ConversationID,
			TurnID:         fmt.Sprintf("legacy-turn-%d", turn),
			Seq:            seq,
			EventType:      eventType,
			ToolCallID:     toolCallID,
			Payload:        payload,
			CreatedAt:      msg.CreatedAt,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case timeline.RoleUser:
			turn++
			emit(msg, timeline.EventUserMessage, "", map[string]any{"text": msg.Content})

		case timeline.RoleAssistant:
			if turn == 0 {
				turn = 1
			}
			if msg.Reasoning != "" {
				emit(msg, timeline.EventAssistantReasoning, "", map[string]any{"text": msg.Reasoning})
			}
			for i, tc := range msg.ToolCalls {
				callID := tc.ID
				if callID == "" {
					callID = fmt.Sprintf("%s_tool_call_%d", msg.ID, i)
				}
				emit(msg, timeline.EventAssistantToolCall, callID, map[string]any{
					"name":           tc.ToolName,
					"index":          i,
					"argumentsChunk": tc.Arguments,
				})
			}
			if msg.Content != "" {
				emit(msg, timeline.EventAssistantText, "", map[string]any{"text": msg.Content})
			}

		case timeline.RoleTool:
			if turn == 0 {
				turn = 1
			}
			payload := map[string]any{"result": msg.Content}
			if msg.ToolName != "" {
				payload["name"] = msg.ToolName
			}
			emit(msg, timeline.EventAssistantToolResult, msg.ToolCallID, payload)
		}
	}
	return out
}
