package timeline

import (
	"sync"
	"testing"
)

func TestAppendMergesTextDeltas(t *testing.T) {
	m := NewManager()
	for i, text := range []string{"Hel", "Hello wor", "Hello world"} {
		ev := textEvent("t1", int64(i+1), text)
		ev.CreatedAt = ""
		m.Append(ev)
	}

	list := m.Timeline("c1")
	if len(list) != 1 {
		t.Fatalf("timeline length = %d, want 1", len(list))
	}
	if got := list[0].Text(); got != "Hello world" {
		t.Fatalf("merged text = %q", got)
	}
}

func TestAppendIdempotent(t *testing.T) {
	m := NewManager()
	m.Append(textEvent("t1", 1, "hello"))
	m.Append(textEvent("t1", 1, "hello"))

	list := m.Timeline("c1")
	if len(list) != 1 || list[0].Text() != "hello" {
		t.Fatalf("duplicate append changed the timeline: %d events", len(list))
	}
}

func TestAppendDedupsRedeliveredResults(t *testing.T) {
	m := NewManager()
	ev := func() *Event {
		return &Event{
			ID:             "evt-1",
			ConversationID: "c1",
			TurnID:         "t1",
			Seq:            5,
			EventType:      EventAssistantToolResult,
			Payload:        map[string]any{"result": "42"},
			CreatedAt:      "2026-08-20T10:00:00Z",
		}
	}
	m.Append(ev())
	m.Append(ev())

	if got := len(m.Timeline("c1")); got != 1 {
		t.Fatalf("redelivered result duplicated: %d events", got)
	}
}

func TestAppendNormalizesMissingFields(t *testing.T) {
	m := NewManager()
	ev := &Event{ConversationID: "c1", TurnID: "t1", Seq: 3, EventType: EventAssistantText}
	m.Append(ev)

	list := m.Timeline("c1")
	if len(list) != 1 {
		t.Fatalf("timeline length = %d", len(list))
	}
	if list[0].ID == "" || list[0].CreatedAt == "" {
		t.Fatalf("id/created_at not defaulted: %+v", list[0])
	}
}

func TestAppendInsertsOutOfOrderEvent(t *testing.T) {
	m := NewManager()

	late := &Event{ConversationID: "c1", TurnID: "t2", Seq: 1,
		EventType: EventUserMessage, CreatedAt: "2026-08-20T10:00:05Z",
		Payload: map[string]any{"text": "second"}}
	early := &Event{ConversationID: "c1", TurnID: "t1", Seq: 1,
		EventType: EventUserMessage, CreatedAt: "2026-08-20T10:00:01Z",
		Payload: map[string]any{"text": "first"}}

	m.Append(late)
	m.Append(early)

	list := m.Timeline("c1")
	if len(list) != 2 {
		t.Fatalf("timeline length = %d", len(list))
	}
	if list[0].Text() != "first" || list[1].Text() != "second" {
		t.Fatalf("out-of-order event not re-sorted: %q, %q", list[0].Text(), list[1].Text())
	}
}

func TestAppendOrdersBySeqWithinTurn(t *testing.T) {
	m := NewManager()
	ts := "2026-08-20T10:00:00Z"
	for _, seq := range []int64{2, 1} {
		m.Append(&Event{ConversationID: "c1", TurnID: "t1", Seq: seq,
			EventType: EventAssistantToolResult, CreatedAt: ts,
			Payload: map[string]any{"result": "r"}})
	}

	list := m.Timeline("c1")
	if len(list) != 2 || list[0].Seq != 1 || list[1].Seq != 2 {
		t.Fatalf("seq order within turn broken: %+v", list)
	}
}

func TestUnparsableTimestampSortsFirst(t *testing.T) {
	m := NewManager()
	m.Append(&Event{ConversationID: "c1", TurnID: "t1", Seq: 1,
		EventType: EventUserMessage, CreatedAt: "2026-08-20T10:00:00Z"})
	m.Append(&Event{ConversationID: "c1", TurnID: "t2", Seq: 1,
		EventType: EventUserMessage, CreatedAt: "not-a-timestamp"})

	list := m.Timeline("c1")
	if len(list) != 2 || list[0].TurnID != "t2" {
		t.Fatalf("unparsable timestamp should sort as zero: %+v", list)
	}
}

func TestReplayMatchesLiveIngestion(t *testing.T) {
	build := func() []*Event {
		return []*Event{
			textEvent("t1", 1, "Hel"),
			textEvent("t1", 2, "Hello wor"),
			toolCallEvent("t1", 3, "call-1", "calc", `{"a":`),
			toolCallEvent("t1", 4, "call-1", "", `1}`),
			textEvent("t1", 5, "Hello world"),
		}
	}

	live := NewManager()
	for _, ev := range build() {
		live.Append(ev)
	}

	replayed := NewManager()
	// 乱序投喂, 回放路径必须先排序再折叠
	batch := build()
	batch[0], batch[4] = batch[4], batch[0]
	replayed.ReplayEvents("c1", batch)

	a, b := live.Timeline("c1"), replayed.Timeline("c1")
	if len(a) != len(b) {
		t.Fatalf("live %d events, replay %d events", len(a), len(b))
	}
	for i := range a {
		if a[i].EventType != b[i].EventType || a[i].Text() != b[i].Text() ||
			a[i].Arguments() != b[i].Arguments() {
			t.Fatalf("event %d diverged:\nlive   %+v\nreplay %+v", i, a[i], b[i])
		}
	}
}

func TestClearConversation(t *testing.T) {
	m := NewManager()
	m.Append(textEvent("t1", 1, "hi"))
	m.SetStreaming("c1", true)
	m.ClearConversation("c1")

	if len(m.Timeline("c1")) != 0 {
		t.Fatal("timeline not cleared")
	}
	if m.IsStreaming("c1") {
		t.Fatal("streaming flag not cleared")
	}
}

func TestStreamingRegistry(t *testing.T) {
	m := NewManager()
	m.SetStreaming("A", true)
	m.SetStreaming("B", true)
	m.SetStreaming("A", false)

	if m.IsStreaming("A") {
		t.Fatal("A should no longer stream")
	}
	if !m.IsStreaming("B") {
		t.Fatal("clearing A must not affect B")
	}
	if !m.IsAnyStreaming() {
		t.Fatal("aggregate flag should stay true while B streams")
	}

	m.SetStreaming("B", false)
	if m.IsAnyStreaming() {
		t.Fatal("aggregate flag should be false with no active streams")
	}
}

func TestOnChangeNotifies(t *testing.T) {
	m := NewManager()
	var mu sync.Mutex
	var calls []string
	m.OnChange(func(id string) {
		mu.Lock()
		calls = append(calls, id)
		mu.Unlock()
	})

	m.Append(textEvent("t1", 1, "hi"))
	m.SetStreaming("c1", true)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != "c1" || calls[1] != "c1" {
		t.Fatalf("notify calls = %v", calls)
	}
}

func TestConcurrentAppendsStayConsistent(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		convo := string(rune('A' + c))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Append(&Event{ConversationID: convo, TurnID: "t1", Seq: int64(i),
					EventType: EventAssistantToolResult,
					CreatedAt: "2026-08-20T10:00:00Z",
					Payload:   map[string]any{"result": "r"}})
			}
		}()
	}
	wg.Wait()

	for c := 0; c < 4; c++ {
		convo := string(rune('A' + c))
		if got := len(m.Timeline(convo)); got != 50 {
			t.Fatalf("conversation %s: %d events, want 50", convo, got)
		}
	}
}
