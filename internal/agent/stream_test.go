package agent

import (
	"strings"
	"testing"
)

func TestParseStream(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name: "result event wins over assistant text",
			input: `{"type":"assistant","message":{"content":[{"type":"text","text":"thinking..."}]}}
{"type":"result","result":"final answer"}`,
			want: "final answer",
		},
		{
			name: "assistant text accumulated when no result event",
			input: `{"type":"assistant","message":{"content":[{"type":"text","text":"part one "}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"part two"}]}}`,
			want: "part one part two",
		},
		{
			name: "unknown event types ignored",
			input: `{"type":"system","subtype":"init"}
{"type":"user","message":{"content":[{"type":"tool_result"}]}}
{"type":"result","result":"done"}`,
			want: "done",
		},
		{
			name: "malformed lines skipped",
			input: `not json at all
{"type":"result","result":"ok"}`,
			want: "ok",
		},
		{
			name:  "empty stream",
			input: "",
			want:  "",
		},
		{
			name:  "empty result event",
			input: `{"type":"result","result":""}`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStream(strings.NewReader(tt.input), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseStream() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStreamProgress(t *testing.T) {
	input := `{"type":"assistant","message":{"content":[{"type":"text","text":"scanning"}]}}
{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Grep"},{"type":"tool_use","name":"Read"}]}}
{"type":"result","result":"done"}`

	var events []ProgressEvent
	_, err := parseStream(strings.NewReader(input), func(ev ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []ProgressEvent{
		{Kind: ProgressText, Text: "scanning"},
		{Kind: ProgressTool, Tool: "Grep"},
		{Kind: ProgressTool, Tool: "Read"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, ev, want[i])
		}
	}
}
