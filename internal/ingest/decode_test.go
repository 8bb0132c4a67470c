package ingest

import (
	"testing"

	"github.com/liuyingduo/petool-chat/internal/timeline"
)

func TestDecodeFrameEvent(t *testing.T) {
	data := []byte(`{
		"id": "e1",
		"conversationId": "c1",
		"turnId": "t1",
		"seq": 7,
		"eventType": "assistant_tool_call",
		"toolCallId": "call-1",
		"createdAt": "2026-08-20T10:00:00Z",
		"payload": {"name": "calc", "argumentsChunk": "{\"a\":1}"}
	}`)

	ev, turnEnded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if turnEnded {
		t.Fatal("event frame misread as turn end")
	}
	if ev.ConversationID != "c1" || ev.TurnID != "t1" || ev.Seq != 7 {
		t.Fatalf("event = %+v", ev)
	}
	if ev.EventType != timeline.EventAssistantToolCall || ev.ToolCallID != "call-1" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.ToolName() != "calc" || ev.Arguments() != `{"a":1}` {
		t.Fatalf("payload = %+v", ev.Payload)
	}
}

func TestDecodeFrameTurnEnded(t *testing.T) {
	ev, turnEnded, err := DecodeFrame([]byte(`{"conversationId":"c1","turnId":"t1","eventType":"turn_ended"}`))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !turnEnded {
		t.Fatal("turn end signal not detected")
	}
	if ev.ConversationID != "c1" || ev.TurnID != "t1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDecodeFrameToleratesMissingPayload(t *testing.T) {
	ev, _, err := DecodeFrame([]byte(`{"conversationId":"c1","turnId":"t1","eventType":"assistant_text"}`))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if ev.Text() != "" {
		t.Fatalf("missing payload should read as empty, got %q", ev.Text())
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeFrame([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
	if _, _, err := DecodeFrame([]byte(`{"eventType":"assistant_text"}`)); err == nil {
		t.Fatal("expected error for frame without conversationId")
	}
}

func TestIsAssistantEvent(t *testing.T) {
	for _, et := range []string{
		timeline.EventAssistantText, timeline.EventAssistantReasoning,
		timeline.EventAssistantToolCall, timeline.EventAssistantToolResult,
	} {
		if !isAssistantEvent(et) {
			t.Errorf("%s should count as assistant event", et)
		}
	}
	if isAssistantEvent(timeline.EventUserMessage) {
		t.Error("user_message is not an assistant event")
	}
}
