package timeline

import (
	"reflect"
	"testing"
)

func TestHydrateStandaloneReasoning(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "u1", Role: RoleUser, Content: "hi"},
		{ID: "a1", Role: RoleAssistant, Content: "hello", Reasoning: "thinking about greeting"},
	})

	entry, ok := st.Reasoning["a1"]
	if !ok {
		t.Fatal("reasoning entry missing")
	}
	if entry.Text != "thinking about greeting" || !entry.Collapsed {
		t.Fatalf("entry = %+v", entry)
	}
	if !st.Collapsed["a1"] {
		t.Fatal("collapse flag not set")
	}
	if len(st.Hidden) != 0 {
		t.Fatalf("no message should be hidden: %v", st.Hidden)
	}
}

func TestHydrateToolSegment(t *testing.T) {
	messages := []Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "t1", ToolName: "calc", Arguments: `{"a":1}`},
		}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: "42"},
		{ID: "a2", Role: RoleAssistant, Content: "final"},
	}
	st := Hydrate(messages)

	if !st.Hidden["a2"] {
		t.Fatal("trailing assistant message should fold into the root")
	}
	if st.Hidden["a1"] {
		t.Fatal("root must stay visible")
	}

	history := st.ToolHistory["a1"]
	if len(history) != 1 {
		t.Fatalf("tool history length = %d", len(history))
	}
	rec := history[0]
	if rec.ID != "t1" || rec.Result != "42" || rec.Status != StatusDone {
		t.Fatalf("record = %+v", rec)
	}

	if st.ContentOverride["a1"] != "final" {
		t.Fatalf("content override = %q", st.ContentOverride["a1"])
	}

	// segment 内只有根消息可见
	visible := 0
	for _, msg := range messages {
		if IsRenderable(msg, st, false) {
			visible++
		}
	}
	if visible != 1 {
		t.Fatalf("visible messages = %d, want 1", visible)
	}
}

func TestHydrateSegmentStopsAtUserMessage(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", ToolName: "calc"}}},
		{ID: "u1", Role: RoleUser, Content: "wait"},
		{ID: "a2", Role: RoleAssistant, Content: "after"},
	})

	if st.Hidden["a2"] {
		t.Fatal("assistant after a user message starts a new turn")
	}
	if st.ContentOverride["a1"] != "" {
		t.Fatalf("content from the next turn leaked into the segment: %q", st.ContentOverride["a1"])
	}
}

func TestHydrateToolResultErrorStatus(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", ToolName: "fetch"}}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: `{"error":"timeout"}`},
	})

	rec := st.ToolHistory["a1"][0]
	if rec.Status != StatusError {
		t.Fatalf("status = %q, want error", rec.Status)
	}
}

func TestHydrateToolResultParseFailureIsDone(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", ToolName: "fetch"}}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: "plain text, not json"},
	})

	if got := st.ToolHistory["a1"][0].Status; got != StatusDone {
		t.Fatalf("status = %q, want done (optimistic on parse failure)", got)
	}
}

func TestHydrateToolResultResolutionFallbacks(t *testing.T) {
	// (b) 无 tool_call_id 时按 running 中同名匹配
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "t1", ToolName: "read"},
			{ID: "t2", ToolName: "write"},
		}},
		{ID: "r1", Role: RoleTool, ToolName: "write", Content: "ok"},
	})
	history := st.ToolHistory["a1"]
	if history[0].Status != StatusRunning || history[1].Status != StatusDone {
		t.Fatalf("name fallback picked wrong record: %+v", history)
	}

	// (c) 恰好一个 running 时直接选它
	st = Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", ToolName: "read"}}},
		{ID: "r1", Role: RoleTool, Content: "ok"},
	})
	if st.ToolHistory["a1"][0].Status != StatusDone {
		t.Fatal("single running record should receive the result")
	}

	// (d) 其余情况落到末条记录
	st = Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "t1", ToolName: "read"},
			{ID: "t2", ToolName: "write"},
		}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: "first"},
		{ID: "r2", Role: RoleTool, ToolCallID: "t2", Content: "second"},
		{ID: "r3", Role: RoleTool, Content: "extra"},
	})
	if got := st.ToolHistory["a1"][1].Result; got != "extra" {
		t.Fatalf("unresolvable result should land on the last record, got %q", got)
	}
}

func TestHydrateDedupsToolCallsAcrossSubMessages(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "t1", ToolName: "calc", Arguments: `{"a":`},
		}},
		{ID: "a2", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "t1", ToolName: "renamed", Arguments: `1}`},
		}},
	})

	history := st.ToolHistory["a1"]
	if len(history) != 1 {
		t.Fatalf("duplicate id produced %d records", len(history))
	}
	if history[0].Arguments != `{"a":1}` {
		t.Fatalf("arguments = %q, want straight concatenation", history[0].Arguments)
	}
	if history[0].Name != "calc" {
		t.Fatalf("first write wins for name, got %q", history[0].Name)
	}
}

func TestHydrateSyntheticKeyForMissingToolCallID(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, ToolCalls: []ToolCall{
			{ToolName: "calc", Arguments: "{}"},
			{ToolName: "fetch", Arguments: "{}"},
		}},
	})
	history := st.ToolHistory["a1"]
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].ID != "a1-tool-0" || history[1].ID != "a1-tool-1" {
		t.Fatalf("synthetic keys = %q, %q", history[0].ID, history[1].ID)
	}
}

func TestHydrateMergesReasoningAcrossToolSteps(t *testing.T) {
	st := Hydrate([]Message{
		{ID: "a1", Role: RoleAssistant, Reasoning: "I should check the weather first.",
			ToolCalls: []ToolCall{{ID: "t1", ToolName: "weather"}}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: "sunny"},
		{ID: "a2", Role: RoleAssistant, Content: "It is sunny.",
			Reasoning: "I should check the weather first. It is sunny, so no umbrella."},
	})

	entry := st.Reasoning["a1"]
	want := "I should check the weather first. It is sunny, so no umbrella."
	if entry.Text != want {
		t.Fatalf("merged reasoning = %q", entry.Text)
	}
}

func TestHydrateIsPure(t *testing.T) {
	messages := []Message{
		{ID: "a1", Role: RoleAssistant, Reasoning: "thought",
			ToolCalls: []ToolCall{{ID: "t1", ToolName: "calc", Arguments: "{}"}}},
		{ID: "r1", Role: RoleTool, ToolCallID: "t1", Content: "42"},
	}

	first := Hydrate(messages)
	second := Hydrate(messages)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated hydration of the same input diverged")
	}
}
