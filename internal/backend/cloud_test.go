package backend

import (
	"context"
	"io"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func intPtr(v int) *int {
	return &v
}

func newPipeSession(msgs []*schema.Message) *einoSession {
	sr, sw := schema.Pipe[*schema.Message](len(msgs))
	for _, msg := range msgs {
		sw.Send(msg, nil)
	}
	sw.Close()

	return &einoSession{
		reader:  sr,
		pending: []Event{NewMetadata("conv-1", "utt-1")},
	}
}

func TestEinoSessionMetadataFirst(t *testing.T) {
	session := newPipeSession([]*schema.Message{
		{Role: schema.Assistant, Content: "hi"},
	})
	defer session.Close()

	first, err := session.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first.Type != EventMetadata || first.Metadata.ConversationID != "conv-1" {
		t.Fatalf("expected metadata event first, got %+v", first)
	}

	second, err := session.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second.Type != EventAssistantText || second.Text != "hi" {
		t.Fatalf("unexpected second event: %+v", second)
	}

	if _, err := session.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestEinoSessionToolCallReconstruction(t *testing.T) {
	session := newPipeSession([]*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			{Index: intPtr(0), ID: "call_1", Function: schema.FunctionCall{Name: "lookup"}},
		}},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			{Index: intPtr(0), Function: schema.FunctionCall{Arguments: "{\"q\":"}},
		}},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			{Index: intPtr(0), Function: schema.FunctionCall{Arguments: "1}"}},
		}},
		{Role: schema.Assistant, ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"}},
	})
	defer session.Close()

	var tools []ToolUseEvent
	for {
		ev, err := session.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ev.Type == EventToolUse {
			tools = append(tools, *ev.ToolUse)
		}
	}

	if len(tools) != 4 {
		t.Fatalf("expected 4 tool events, got %d: %+v", len(tools), tools)
	}
	if tools[0].Name != "lookup" || tools[0].ID != "call_1" || tools[0].Stop {
		t.Fatalf("unexpected announce: %+v", tools[0])
	}

	var args string
	for _, ev := range tools {
		if ev.Input != nil {
			args += *ev.Input
		}
	}
	if args != "{\"q\":1}" {
		t.Fatalf("arguments = %q", args)
	}

	last := tools[len(tools)-1]
	if !last.Stop || last.ID != "call_1" {
		t.Fatalf("unexpected stop event: %+v", last)
	}
}
