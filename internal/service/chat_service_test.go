package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dentgo-go/internal/model"
	"dentgo-go/internal/testutil"
)

type chatFixture struct {
	svc   *chatService
	llm   *testutil.LLM
	chats *testutil.ChatRepo
	usage *testutil.UsageRepo
	user  *model.User
}

func newChatFixture(limit int) *chatFixture {
	f := &chatFixture{
		llm:   &testutil.LLM{Answer: "Take an x-ray first."},
		chats: testutil.NewChatRepo(),
		usage: testutil.NewUsageRepo(),
		user:  &model.User{ID: 7, Plan: model.PlanFree},
	}
	f.svc = NewChatService(f.llm, f.chats, f.usage, ChatOptions{
		SystemPrompt:       "be helpful",
		HistoryLimit:       2,
		FreeMessagesPerDay: limit,
	}).(*chatService)
	f.svc.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	return f
}

func TestAskCreatesSession(t *testing.T) {
	f := newChatFixture(5)

	resp, err := f.svc.Ask(context.Background(), f.user, AskRequest{Prompt: "  Hello  "})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.SessionID == 0 || resp.Answer != "Take an x-ray first." {
		t.Errorf("Ask() = %+v", resp)
	}

	session, _ := f.chats.FindSession(resp.SessionID)
	if len(session.Messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(session.Messages))
	}
	if session.Messages[0].Role != model.MessageRoleUser || session.Messages[0].Content != "Hello" {
		t.Errorf("first message = %+v", session.Messages[0])
	}
	if session.Messages[1].Role != model.MessageRoleAssistant {
		t.Errorf("second message role = %q, want ASSISTANT", session.Messages[1].Role)
	}

	if n, _ := f.svc.Count(context.Background(), f.user.ID, "2025-03-04"); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestAskComposesHistory(t *testing.T) {
	f := newChatFixture(5)
	history := []HistoryItem{
		{Role: "user", Text: "first"},
		{Role: "assistant", Text: "second"},
		{Role: "user", Text: "third"},
	}

	if _, err := f.svc.Ask(context.Background(), f.user, AskRequest{Prompt: "now", History: history}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	msgs := f.llm.Calls[0]
	// system + 2 条历史 (HistoryLimit) + 本轮提问
	if len(msgs) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(msgs))
	}
	want := []struct{ role, content string }{
		{"system", "be helpful"},
		{"assistant", "second"},
		{"user", "third"},
		{"user", "now"},
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("messages[%d] = %+v, want %s/%s", i, msgs[i], w.role, w.content)
		}
	}
}

func TestAskErrors(t *testing.T) {
	f := newChatFixture(1)
	ended := time.Now()
	// 依次创建 ID 为 1、2、3 的会话
	_ = f.chats.CreateSession(&model.ChatSession{UserID: f.user.ID})
	_ = f.chats.CreateSession(&model.ChatSession{UserID: 99})
	_ = f.chats.CreateSession(&model.ChatSession{UserID: f.user.ID, EndedAt: &ended})
	id := func(v uint) *uint { return &v }

	tests := []struct {
		name string
		req  AskRequest
		want error
	}{
		{"empty prompt", AskRequest{Prompt: "   "}, ErrEmptyPrompt},
		{"missing session", AskRequest{Prompt: "hi", SessionID: id(42)}, ErrSessionNotFound},
		{"foreign session", AskRequest{Prompt: "hi", SessionID: id(2)}, ErrSessionNotFound},
		{"ended session", AskRequest{Prompt: "hi", SessionID: id(3)}, ErrSessionEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Ask(context.Background(), f.user, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Ask() error = %v, want %v", err, tt.want)
			}
		})
	}
	if len(f.llm.Calls) != 0 {
		t.Errorf("LLM called %d times, want 0", len(f.llm.Calls))
	}
}

func TestAskDailyLimit(t *testing.T) {
	f := newChatFixture(1)
	f.usage.Set(f.user.ID, "2025-03-04", 1)

	if _, err := f.svc.Ask(context.Background(), f.user, AskRequest{Prompt: "hi"}); !errors.Is(err, ErrDailyLimitReached) {
		t.Errorf("Ask() error = %v, want ErrDailyLimitReached", err)
	}

	plus := &model.User{ID: f.user.ID, Plan: model.PlanPlus}
	if _, err := f.svc.Ask(context.Background(), plus, AskRequest{Prompt: "hi"}); err != nil {
		t.Errorf("Ask() for PLUS user error = %v, want nil", err)
	}
}

func TestAskLLMFailureKeepsNoSession(t *testing.T) {
	f := newChatFixture(5)
	f.llm.Err = errors.New("upstream down")

	if _, err := f.svc.Ask(context.Background(), f.user, AskRequest{Prompt: "hi"}); err == nil {
		t.Fatal("Ask() error = nil, want error")
	}
	if len(f.chats.Sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(f.chats.Sessions))
	}
	if n, _ := f.svc.Count(context.Background(), f.user.ID, ""); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestCountRejectsBadDate(t *testing.T) {
	f := newChatFixture(1)
	if _, err := f.svc.Count(context.Background(), 1, "03/04/2025"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Count() error = %v, want ErrInvalidInput", err)
	}
}
