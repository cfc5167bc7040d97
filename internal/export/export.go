// Package export 把聊天记录导出为 JSON、YAML 或 Markdown。
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dentgo-go/internal/messagestore"
)

// Transcript 是一次导出的内容。
type Transcript struct {
	SessionID *int64                     `json:"sessionId" yaml:"sessionId"`
	Title     string                     `json:"title,omitempty" yaml:"title,omitempty"`
	Ended     bool                       `json:"ended" yaml:"ended"`
	Messages  []messagestore.ChatMessage `json:"messages" yaml:"messages"`
}

// Exporter 定义导出格式。
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter 根据格式名创建导出器。
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

type JSONExporter struct{}

func (e *JSONExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func (e *JSONExporter) Extension() string { return "json" }

type YAMLExporter struct{}

func (e *YAMLExporter) Export(t *Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return enc.Encode(t)
}

func (e *YAMLExporter) Extension() string { return "yaml" }

// MarkdownExporter 输出可读的对话记录，欢迎语不导出。
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	title := t.Title
	if title == "" {
		title = "Dentgo chat"
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)
	if t.SessionID != nil {
		_, _ = fmt.Fprintf(w, "**Session:** %d  \n", *t.SessionID)
	}
	if t.Ended {
		_, _ = fmt.Fprintf(w, "**Status:** ended  \n")
	}

	msgs := make([]messagestore.ChatMessage, 0, len(t.Messages))
	for _, m := range t.Messages {
		if !m.Greeting {
			msgs = append(msgs, m)
		}
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n---\n\n", len(msgs))

	for i, m := range msgs {
		speaker := "You"
		if m.Role == messagestore.RoleAssistant {
			speaker = "Dentgo"
		}
		stamp := ""
		if m.Timestamp > 0 {
			stamp = " (" + time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339) + ")"
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", speaker, stamp, strings.TrimSpace(m.Content))
		if i < len(msgs)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }
