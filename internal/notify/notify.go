// Package notify 提供终端中的 toast 提示。
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Kind 是提示的类型。
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Toast 是一条提示。
type Toast struct {
	Kind    Kind
	Message string
}

// Notifier 展示提示。
type Notifier interface {
	Notify(t Toast)
}

// Success、Error 与 Info 是便捷函数。
func Success(n Notifier, msg string) { n.Notify(Toast{Kind: KindSuccess, Message: msg}) }
func Error(n Notifier, msg string) { n.Notify(Toast{Kind: KindError, Message: msg}) }
func Info(n Notifier, msg string) { n.Notify(Toast{Kind: KindInfo, Message: msg}) }

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// Console 把提示按类型着色后写入 w。
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole 创建一个写入 w 的 Console。
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(t Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, Render(t))
}

// Render 返回提示在终端中的样式化文本。
func Render(t Toast) string {
	switch t.Kind {
	case KindSuccess:
		return successStyle.Render("✔ " + t.Message)
	case KindError:
		return errorStyle.Render("✖ " + t.Message)
	default:
		return infoStyle.Render("ℹ " + t.Message)
	}
}

// Recorder 记录收到的提示，供测试断言。
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts 返回已记录提示的副本。
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last 返回最后一条提示，没有时 ok 为 false。
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}
