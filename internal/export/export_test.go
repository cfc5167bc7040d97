package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"dentgo-go/internal/messagestore"
)

func sampleTranscript() *Transcript {
	id := int64(42)
	return &Transcript{
		SessionID: &id,
		Title:     "Crown prep",
		Ended:     true,
		Messages: []messagestore.ChatMessage{
			{ID: "g", Role: messagestore.RoleAssistant, Content: "Hey", Greeting: true},
			{ID: "1", Role: messagestore.RoleUser, Content: "Margin design?", Timestamp: 1767348000000},
			{ID: "2", Role: messagestore.RoleAssistant, Content: "Chamfer margin."},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"json", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"md", "md", false},
		{"markdown", "md", false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExporter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && exp.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", exp.Extension(), tt.wantExt)
			}
		})
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleTranscript(), &buf); err != nil {
		t.Fatal(err)
	}
	var got Transcript
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.SessionID == nil || *got.SessionID != 42 || len(got.Messages) != 3 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleTranscript(), &buf); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got["title"] != "Crown prep" || got["ended"] != true {
		t.Errorf("decoded = %v", got)
	}
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleTranscript(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Crown prep",
		"**Session:** 42",
		"**Messages:** 2",
		"**You:** (2026-01-02T10:00:00Z)\n\nMargin design?",
		"**Dentgo:**\n\nChamfer margin.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Hey") {
		t.Error("markdown contains the greeting")
	}

	buf.Reset()
	_ = (&MarkdownExporter{}).Export(&Transcript{}, &buf)
	if !strings.HasPrefix(buf.String(), "# Dentgo chat") {
		t.Errorf("untitled header = %q", buf.String())
	}
}
