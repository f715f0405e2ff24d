package model

import (
	"encoding/json"
	"testing"
)

func TestMessageContentUnmarshalString(t *testing.T) {
	var msg ChatMessage
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Content.IsParts {
		t.Fatal("string content flagged as parts")
	}
	if msg.Content.PlainText() != "hello" {
		t.Fatalf("plain text = %q", msg.Content.PlainText())
	}
}

func TestMessageContentUnmarshalParts(t *testing.T) {
	raw := `{"role":"user","content":[
		{"type":"text","text":"first"},
		{"type":"image_url","image_url":{"url":"http://example.com/img.png"}},
		{"type":"text","text":"second"}
	]}`

	var msg ChatMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.Content.IsParts || len(msg.Content.Parts) != 3 {
		t.Fatalf("unexpected content: %+v", msg.Content)
	}
	// image parts dropped, text parts joined with newline
	if got := msg.Content.PlainText(); got != "first\nsecond" {
		t.Fatalf("plain text = %q", got)
	}
}

func TestMessageContentUnmarshalInvalid(t *testing.T) {
	var content MessageContent
	if err := json.Unmarshal([]byte(`{"nested":"object"}`), &content); err == nil {
		t.Fatal("expected error for object content")
	}
	if err := json.Unmarshal([]byte(`42`), &content); err == nil {
		t.Fatal("expected error for numeric content")
	}
}

func TestMessageContentMarshalRoundTrip(t *testing.T) {
	plain := MessageContent{Text: "hi"}
	data, err := json.Marshal(plain)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"hi"` {
		t.Fatalf("marshaled string form = %s", data)
	}

	parts := MessageContent{IsParts: true, Parts: []ContentPart{{Type: "text", Text: "hi"}}}
	data, err = json.Marshal(parts)
	if err != nil {
		t.Fatalf("marshal parts: %v", err)
	}
	if string(data) != `[{"type":"text","text":"hi"}]` {
		t.Fatalf("marshaled parts form = %s", data)
	}
}
