// display.go — 渲染层读取的派生视图: 展示正文与可见性判定。
package timeline

import "strings"

// DisplayedContent 计算消息的展示正文。assistant 消息优先取
// content_override, 并剥掉与推理文本重复的前缀 (minLen=8), 剥除后
// 重新去掉首部空白。其他角色原样返回。
func DisplayedContent(msg Message, st DerivedState) string {
	if msg.Role != RoleAssistant {
		return msg.Content
	}

	content := msg.Content
	if override, ok := st.ContentOverride[msg.ID]; ok {
		content = override
	}

	reasoning := msg.Reasoning
	if entry, ok := st.Reasoning[msg.ID]; ok {
		reasoning = entry.Text
	}
	if reasoning == "" {
		return content
	}

	trimmed := strings.TrimSpace(content)
	n := Overlap(reasoning, trimmed, 8)
	if n == 0 {
		return content
	}
	return strings.TrimLeft(trimAfterOverlap(trimmed, n), " \t\r\n")
}

// IsRenderable 消息是否需要渲染。user/system 总是渲染; tool 消息的
// 内容折叠进所属 assistant 根消息, 自身不渲染; assistant 消息在
// 隐藏标志未置位且 (流式中 或 有内容/推理/工具调用) 时渲染。
func IsRenderable(msg Message, st DerivedState, streaming bool) bool {
	switch msg.Role {
	case RoleUser, RoleSystem:
		return true
	case RoleTool:
		return false
	}

	if st.Hidden[msg.ID] {
		return false
	}
	if streaming {
		return true
	}
	if strings.TrimSpace(DisplayedContent(msg, st)) != "" {
		return true
	}
	if entry, ok := st.Reasoning[msg.ID]; ok && strings.TrimSpace(entry.Text) != "" {
		return true
	}
	if strings.TrimSpace(msg.Reasoning) != "" {
		return true
	}
	if len(msg.ToolCalls) > 0 {
		return true
	}
	return len(st.ToolHistory[msg.ID]) > 0
}
