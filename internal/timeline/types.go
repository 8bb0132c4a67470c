// Package timeline 流式会话时间线的合并与重建核心。
//
// 上游以推送方式投递一个回合 (turn) 内的增量事件: 推理增量、正文增量、
// 工具调用参数增量、工具结果。本包负责去重、按时间排序、把相邻增量
// 折叠为单条事件, 并从持久化的消息日志中纯函数式地重建等价的渲染状态。
package timeline

import (
	"encoding/json"
	"time"
)

// 事件类型 (与上游 wire 格式一致)。
const (
	EventUserMessage         = "user_message"
	EventAssistantText       = "assistant_text"
	EventAssistantReasoning  = "assistant_reasoning"
	EventAssistantToolCall   = "assistant_tool_call"
	EventAssistantToolResult = "assistant_tool_result"
)

// payload 中的约定键。
const (
	payloadKeyText      = "text"
	payloadKeyChunk     = "chunk"
	payloadKeyContent   = "content"
	payloadKeyName      = "name"
	payloadKeyIndex     = "index"
	payloadKeyArguments = "argumentsChunk"
	payloadKeyResult    = "result"
)

// Event 上游投递的最小事件单元。seq 在同一 turn 内单调递增。
// 合并时 base 事件被原地修改, 调用方不应持有旧副本。
type Event struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	TurnID         string         `json:"turnId"`
	Seq            int64          `json:"seq"`
	EventType      string         `json:"eventType"`
	ToolCallID     string         `json:"toolCallId,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      string         `json:"createdAt"`
}

func (e *Event) ensurePayload() {
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
}

// Text 容错读取文本增量, 按常见键优先级取第一个字符串值。
func (e *Event) Text() string {
	return payloadString(e.Payload, payloadKeyText, payloadKeyChunk, payloadKeyContent)
}

func (e *Event) setText(text string) {
	e.ensurePayload()
	e.Payload[payloadKeyText] = text
}

// ToolName 工具调用事件携带的工具名, 缺失时为空串。
func (e *Event) ToolName() string {
	return payloadString(e.Payload, payloadKeyName)
}

// Arguments 工具调用事件累积的参数字符串。
func (e *Event) Arguments() string {
	return payloadString(e.Payload, payloadKeyArguments, "arguments")
}

func (e *Event) setArguments(args string) {
	e.ensurePayload()
	e.Payload[payloadKeyArguments] = args
}

// Result 工具结果事件的结果文本。
func (e *Event) Result() string {
	return payloadString(e.Payload, payloadKeyResult, payloadKeyContent, payloadKeyText)
}

// PayloadIndex 工具调用的数值序号 (tool_call_id 缺失时的关联兜底)。
func (e *Event) PayloadIndex() (int, bool) {
	if e.Payload == nil {
		return 0, false
	}
	return asInt(e.Payload[payloadKeyIndex])
}

// parseEventTime 解析 created_at; 解析失败返回零值 (排在最前)。
func parseEventTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// eventLess 时间线全序: created_at 升序, 同 turn 内按 seq 升序。
// 不同 turn 且时间戳相等时视为相等 (保持到达顺序)。
func eventLess(a, b *Event) bool {
	ta, tb := parseEventTime(a.CreatedAt), parseEventTime(b.CreatedAt)
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	if a.TurnID == b.TurnID {
		return a.Seq < b.Seq
	}
	return false
}

func payloadString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		if text, ok := value.(string); ok && text != "" {
			return text
		}
	}
	return ""
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
