// merge.go — 事件合并代数: 判定相邻事件能否折叠为一条, 以及 payload 如何组合。
package timeline

import "strings"

// tryMerge 尝试把 incoming 原地吸收进 base (时间线上最后一条事件)。
// 返回 true 表示 base 已被修改, 调用方无需再插入 incoming。
//
// 规则按序判定:
//  1. turn_id 不同 → 不合并
//  2. event_type 不同 → 不合并
//  3. 文本/推理增量 → 总是合并 (mergeTextChunk)
//  4. 工具调用增量 → 按 tool_call_id (缺失时按数值 index) 关联后合并参数
//  5. 工具结果 / 用户消息 → 永不合并
func tryMerge(base, incoming *Event) bool {
	if base == nil || incoming == nil {
		return false
	}
	if base.TurnID != incoming.TurnID || base.EventType != incoming.EventType {
		return false
	}

	switch base.EventType {
	case EventAssistantText, EventAssistantReasoning:
		base.setText(mergeTextChunk(base.Text(), incoming.Text()))

	case EventAssistantToolCall:
		if !sameToolCall(base, incoming) {
			return false
		}
		if name := incoming.ToolName(); name != "" {
			base.ensurePayload()
			base.Payload[payloadKeyName] = name
		}
		if idx, ok := incoming.PayloadIndex(); ok {
			base.ensurePayload()
			base.Payload[payloadKeyIndex] = idx
		}
		if base.ToolCallID == "" {
			base.ToolCallID = incoming.ToolCallID
		}
		base.setArguments(mergeToolArguments(base.Arguments(), incoming.Arguments()))

	default:
		return false
	}

	base.Seq = incoming.Seq
	base.CreatedAt = incoming.CreatedAt
	return true
}

// sameToolCall 两条工具调用增量是否属于同一个调用。
// 双方都有 tool_call_id 时按 id 判等; 否则回退到 payload 的数值 index。
func sameToolCall(base, incoming *Event) bool {
	if base.ToolCallID != "" && incoming.ToolCallID != "" {
		return base.ToolCallID == incoming.ToolCallID
	}
	bi, bok := base.PayloadIndex()
	ii, iok := incoming.PayloadIndex()
	return bok && iok && bi == ii
}

// mergeTextChunk 文本增量合并:
// 空值取另一方; 相等取原值; incoming 以 base 为前缀说明后端重发了
// 累积全文, 直接替换; 其余情况按增量语义原样追加。
func mergeTextChunk(base, incoming string) string {
	switch {
	case base == "":
		return incoming
	case incoming == "":
		return base
	case incoming == base:
		return base
	case strings.HasPrefix(incoming, base):
		return incoming
	default:
		return base + incoming
	}
}

// mergeToolArguments 参数片段合并: 找最大前后缀重叠, 只追加 incoming
// 的非重叠余部; 无重叠则原样追加。单字符的边界巧合 (如 "…:1" 接
// "1,…") 不算重叠, 否则会误截断增量。
func mergeToolArguments(base, incoming string) string {
	if base == "" {
		return incoming
	}
	if incoming == "" {
		return base
	}
	n := Overlap(base, incoming, 2)
	return base + trimAfterOverlap(incoming, n)
}

// MergeReasoningParts 把一个 segment 收集到的推理片段两两合并。
// 后端在每个工具步骤会重发之前的推理全文, 用 minLen=10 的重叠消除
// 重复; 无重叠时用空行拼接。
func MergeReasoningParts(parts []string) string {
	merged := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if merged == "" {
			merged = part
			continue
		}
		if n := Overlap(merged, part, 10); n > 0 {
			merged += trimAfterOverlap(part, n)
		} else {
			merged += "\n\n" + part
		}
	}
	return merged
}
