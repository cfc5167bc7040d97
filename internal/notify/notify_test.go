package notify

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	Success(c, "Card saved")
	Error(c, "Payment failed")

	out := buf.String()
	for _, want := range []string{"Card saved", "Payment failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Errorf("lines = %d, want 2", got)
	}
}

func TestRenderPrefix(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSuccess, "✔ ok"},
		{KindError, "✖ ok"},
		{KindInfo, "ℹ ok"},
	}
	for _, tt := range tests {
		if got := Render(Toast{Kind: tt.kind, Message: "ok"}); !strings.Contains(got, tt.want) {
			t.Errorf("Render(%s) = %q, want to contain %q", tt.kind, got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	if _, ok := r.Last(); ok {
		t.Error("Last() on empty recorder ok = true")
	}
	Info(r, "first")
	Error(r, "second")
	if got := len(r.Toasts()); got != 2 {
		t.Fatalf("len(Toasts()) = %d, want 2", got)
	}
	last, _ := r.Last()
	if last != (Toast{Kind: KindError, Message: "second"}) {
		t.Errorf("Last() = %+v", last)
	}
}
