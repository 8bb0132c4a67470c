// hydrator.go — 从消息粒度的持久化日志重建与实时合并等价的派生状态。
package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// 工具调用状态。
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Message 持久化后的消息行 (已被存储层按 "一行一个模型回合" 粗粒度
// 合并, 比原始事件更粗)。tool_call_id / name 仅 tool 角色可能携带。
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	Reasoning      string     `json:"reasoning,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID     string     `json:"tool_call_id,omitempty"`
	ToolName       string     `json:"name,omitempty"`
	CreatedAt      string     `json:"created_at"`
}

// ToolCall 消息行内嵌的完整工具调用 (非增量)。
type ToolCall struct {
	ID        string `json:"id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
}

// ToolCallRecord 派生的工具调用记录, 不落库。
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
	Status    string `json:"status"`
	Index     int    `json:"index"`
}

// ReasoningEntry 派生的推理条目。回合结束后自动折叠。
type ReasoningEntry struct {
	Text      string `json:"text"`
	Collapsed bool   `json:"collapsed"`
}

// DerivedState Hydrate 的输出, 全部以消息 id 为键, 每次调用完整重算。
type DerivedState struct {
	Reasoning       map[string]ReasoningEntry   `json:"reasoning"`
	ToolHistory     map[string][]ToolCallRecord `json:"tool_history"`
	Collapsed       map[string]bool             `json:"collapsed"`
	Hidden          map[string]bool             `json:"hidden"`
	ContentOverride map[string]string           `json:"content_override"`
}

func newDerivedState() DerivedState {
	return DerivedState{
		Reasoning:       map[string]ReasoningEntry{},
		ToolHistory:     map[string][]ToolCallRecord{},
		Collapsed:       map[string]bool{},
		Hidden:          map[string]bool{},
		ContentOverride: map[string]string{},
	}
}

// Hydrate 按序扫描消息, 把连续的 assistant/tool 消息归并为 segment
// (以首条 assistant 为根, 其余 assistant 隐藏), 重建推理、工具调用
// 历史与最终正文。纯函数: 相同输入总是产生相同输出。
func Hydrate(messages []Message) DerivedState {
	st := newDerivedState()

	i := 0
	for i < len(messages) {
		msg := messages[i]
		if msg.Role != RoleAssistant {
			i++
			continue
		}

		if len(msg.ToolCalls) == 0 {
			// 无工具调用的独立 assistant 消息: 只登记推理
			if strings.TrimSpace(msg.Reasoning) != "" {
				st.Reasoning[msg.ID] = ReasoningEntry{Text: msg.Reasoning, Collapsed: true}
				st.Collapsed[msg.ID] = true
			}
			i++
			continue
		}

		end := i + 1
		for end < len(messages) && (messages[end].Role == RoleAssistant || messages[end].Role == RoleTool) {
			end++
		}
		hydrateSegment(&st, messages[i:end])
		i = end
	}
	return st
}

// hydrateSegment 处理一个 segment (segment[0] 为根 assistant 消息)。
func hydrateSegment(st *DerivedState, segment []Message) {
	rootID := segment[0].ID

	var records []ToolCallRecord
	seen := map[string]int{}
	var reasoningParts []string
	finalContent := ""

	for _, sub := range segment {
		switch sub.Role {
		case RoleAssistant:
			if sub.ID != rootID {
				st.Hidden[sub.ID] = true
			}
			for ord, tc := range sub.ToolCalls {
				key := tc.ID
				if key == "" {
					key = fmt.Sprintf("%s-tool-%d", sub.ID, ord)
				}
				if pos, ok := seen[key]; ok {
					// 已知 id: name 首写优先, 参数直接拼接
					records[pos].Arguments += tc.Arguments
					continue
				}
				seen[key] = len(records)
				records = append(records, ToolCallRecord{
					ID:        key,
					Name:      tc.ToolName,
					Arguments: tc.Arguments,
					Status:    StatusRunning,
					Index:     len(records),
				})
			}
			if sub.Reasoning != "" {
				reasoningParts = append(reasoningParts, sub.Reasoning)
			}
			if strings.TrimSpace(sub.Content) != "" {
				finalContent = sub.Content
			}

		case RoleTool:
			target := resolveToolTarget(records, sub)
			if target < 0 {
				continue
			}
			records[target].Result = sub.Content
			if resultIsError(sub.Content) {
				records[target].Status = StatusError
			} else {
				records[target].Status = StatusDone
			}
		}
	}

	if merged := MergeReasoningParts(reasoningParts); merged != "" {
		st.Reasoning[rootID] = ReasoningEntry{Text: merged, Collapsed: true}
		st.Collapsed[rootID] = true
	}
	if len(records) > 0 {
		st.ToolHistory[rootID] = records
	}
	if strings.TrimSpace(finalContent) != "" {
		st.ContentOverride[rootID] = finalContent
	}
}

// resolveToolTarget 为 tool 消息找到归属的调用记录, 依次回退:
// tool_call_id 精确匹配 → running 中首个同名 → 唯一 running → 末条。
func resolveToolTarget(records []ToolCallRecord, msg Message) int {
	if len(records) == 0 {
		return -1
	}
	if msg.ToolCallID != "" {
		for i := range records {
			if records[i].ID == msg.ToolCallID {
				return i
			}
		}
	}
	if msg.ToolName != "" {
		for i := range records {
			if records[i].Status == StatusRunning && records[i].Name == msg.ToolName {
				return i
			}
		}
	}
	runningIdx, runningCount := -1, 0
	for i := range records {
		if records[i].Status == StatusRunning {
			runningIdx = i
			runningCount++
		}
	}
	if runningCount == 1 {
		return runningIdx
	}
	return len(records) - 1
}

// resultIsError 结果 JSON 带非空字符串 error 字段视为失败;
// 解析失败乐观地当作成功。
func resultIsError(result string) bool {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		return false
	}
	text, ok := parsed["error"].(string)
	return ok && text != ""
}
