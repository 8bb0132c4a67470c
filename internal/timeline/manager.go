// manager.go — 按会话持有时间线与流式标志, 单锁保证 merge-then-insert 原子性。
package timeline

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager 所有会话时间线的唯一持有者。
// 合并判定与插入必须在同一临界区完成, 否则并发 append 可能各自判定
// "不合并" 而产生重复事件。
type Manager struct {
	mu        sync.Mutex
	timelines map[string][]*Event
	streaming map[string]struct{}
	notify    func(conversationID string)
}

func NewManager() *Manager {
	return &Manager{
		timelines: map[string][]*Event{},
		streaming: map[string]struct{}{},
	}
}

// OnChange 注册变更通知回调 (每次时间线或流式标志变化后调用,
// 在锁外执行)。替代自动依赖追踪, 由调用方决定重算什么。
func (m *Manager) OnChange(fn func(conversationID string)) {
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
}

// Append 接收一条实时事件: 补全缺省字段后尝试与该会话最后一条事件
// 合并, 失败则按 (created_at, seq) 全序插入。事件所有权移交 Manager。
func (m *Manager) Append(ev *Event) {
	if ev == nil || ev.ConversationID == "" {
		return
	}
	m.mu.Lock()
	normalizeEvent(ev)
	m.appendLocked(ev)
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		notify(ev.ConversationID)
	}
}

func (m *Manager) appendLocked(ev *Event) {
	list := m.timelines[ev.ConversationID]

	if n := len(list); n > 0 && tryMerge(list[n-1], ev) {
		return
	}
	// 重投递去重: 合并失败但 id 已存在的事件直接丢弃
	for _, existing := range list {
		if existing.ID == ev.ID {
			return
		}
	}

	if len(list) == 0 || !eventLess(ev, list[len(list)-1]) {
		m.timelines[ev.ConversationID] = append(list, ev)
		return
	}
	pos := sort.Search(len(list), func(i int) bool { return eventLess(ev, list[i]) })
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = ev
	m.timelines[ev.ConversationID] = list
}

// ReplayEvents 冷启动回放: 对持久化的事件批次先按全序排序, 再从左到
// 右用与实时路径相同的合并规则折叠, 得到规范化时间线并整体替换。
func (m *Manager) ReplayEvents(conversationID string, events []*Event) {
	if conversationID == "" {
		return
	}
	sorted := make([]*Event, len(events))
	copy(sorted, events)
	for _, ev := range sorted {
		normalizeEvent(ev)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return eventLess(sorted[i], sorted[j]) })

	m.mu.Lock()
	m.timelines[conversationID] = nil
	for _, ev := range sorted {
		m.appendLocked(ev)
	}
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		notify(conversationID)
	}
}

// Timeline 返回会话当前时间线的快照 (切片副本)。
func (m *Manager) Timeline(conversationID string) []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.timelines[conversationID]
	out := make([]*Event, len(list))
	copy(out, list)
	return out
}

// ClearConversation 移除会话的时间线与流式标志。
func (m *Manager) ClearConversation(conversationID string) {
	m.mu.Lock()
	delete(m.timelines, conversationID)
	delete(m.streaming, conversationID)
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		notify(conversationID)
	}
}

// SetStreaming 更新会话流式标志。false 直接删除条目 (而非置 false),
// 使集合大小即为活跃流数量。
func (m *Manager) SetStreaming(conversationID string, on bool) {
	m.mu.Lock()
	if on {
		m.streaming[conversationID] = struct{}{}
	} else {
		delete(m.streaming, conversationID)
	}
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		notify(conversationID)
	}
}

func (m *Manager) IsStreaming(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.streaming[conversationID]
	return ok
}

// IsAnyStreaming 聚合标志, 每次查询基于集合非空重新计算。
func (m *Manager) IsAnyStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streaming) > 0
}

// StreamingConversations 返回当前处于流式状态的会话 id (升序)。
func (m *Manager) StreamingConversations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.streaming))
	for id := range m.streaming {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// normalizeEvent 补全缺省字段。payload 缺失字段按空值处理, 永不报错。
func normalizeEvent(ev *Event) {
	if ev.CreatedAt == "" {
		ev.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("%s-%d-%s", ev.TurnID, ev.Seq, ev.CreatedAt)
	}
}
