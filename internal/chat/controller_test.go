package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"dentgo-go/internal/localstore"
	"dentgo-go/internal/messagestore"
	"dentgo-go/internal/notify"
	"dentgo-go/pkg/apiclient"
)

type fakeAPI struct {
	mu       sync.Mutex
	asks     []apiclient.AskRequest
	askErr   error
	block    chan struct{}
	started  chan struct{}
	nextID   int64
	session  *apiclient.ChatSession
	endCalls []int64
	endErr   error
	count    int64
}

func (f *fakeAPI) Ask(_ context.Context, req apiclient.AskRequest) (*apiclient.AskResponse, error) {
	f.mu.Lock()
	f.asks = append(f.asks, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.askErr != nil {
		return nil, f.askErr
	}
	id := f.nextID
	if req.SessionID != nil {
		id = *req.SessionID
	}
	return &apiclient.AskResponse{SessionID: &id, Answer: "Hi doctor"}, nil
}

func (f *fakeAPI) GetSession(_ context.Context, id int64) (*apiclient.ChatSession, error) {
	if f.session == nil || f.session.ID != id {
		return nil, &apiclient.APIError{Status: http.StatusNotFound, Message: "Session not found"}
	}
	return f.session, nil
}

func (f *fakeAPI) EndSession(_ context.Context, id int64, title string) (*apiclient.ChatSession, error) {
	f.endCalls = append(f.endCalls, id)
	if f.endErr != nil {
		return nil, f.endErr
	}
	return &apiclient.ChatSession{ID: id, Title: &title, IsEnded: true}, nil
}

func (f *fakeAPI) Count(context.Context, string) (int64, error) {
	return f.count, nil
}

type plan string

func (p plan) Subscription(context.Context) (*apiclient.Subscription, error) {
	return &apiclient.Subscription{Plan: string(p)}, nil
}

type navRecorder struct {
	replaced  []string
	navigated []string
}

func (n *navRecorder) Replace(path string)   { n.replaced = append(n.replaced, path) }
func (n *navRecorder) Navigate(route string) { n.navigated = append(n.navigated, route) }

type fixture struct {
	api   *fakeAPI
	nav   *navRecorder
	toast *notify.Recorder
	ctrl  *Controller
}

func newFixture(t *testing.T, api *fakeAPI, p plan) *fixture {
	t.Helper()
	store, err := messagestore.New(localstore.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{api: api, nav: &navRecorder{}, toast: &notify.Recorder{}}
	f.ctrl = NewController(api, store, p, f.nav, f.toast, Options{FreeMessagesPerDay: 3})
	return f
}

func int64Ptr(v int64) *int64 { return &v }

func TestSendNewSession(t *testing.T) {
	f := newFixture(t, &fakeAPI{nextID: 7}, plan(apiclient.PlanFree))
	ctx := context.Background()
	if err := f.ctrl.Open(ctx, nil); err != nil {
		t.Fatal(err)
	}

	reply, err := f.ctrl.Send(ctx, "Hello")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Content != "Hi doctor" {
		t.Errorf("reply = %q", reply.Content)
	}

	req := f.api.asks[0]
	if req.Prompt != "Hello" || req.SessionID != nil || req.History == nil || len(req.History) != 0 {
		t.Errorf("Ask() request = %+v, want prompt Hello, empty history, null session", req)
	}

	msgs := f.ctrl.Messages()
	if len(msgs) != 3 || !msgs[0].Greeting {
		t.Fatalf("Messages() = %+v", msgs)
	}
	if msgs[1].Role != messagestore.RoleUser || msgs[1].Content != "Hello" || msgs[2].Role != messagestore.RoleAssistant {
		t.Errorf("tail = %+v, %+v", msgs[1], msgs[2])
	}
	if id := f.ctrl.SessionID(); id == nil || *id != 7 {
		t.Errorf("SessionID() = %v, want 7", id)
	}
	if len(f.nav.replaced) != 1 || f.nav.replaced[0] != "?sessionId=7" {
		t.Errorf("Replace() calls = %v", f.nav.replaced)
	}
	if f.ctrl.UsedToday() != 1 || f.ctrl.State() != StateIdle {
		t.Errorf("UsedToday() = %d, State() = %v", f.ctrl.UsedToday(), f.ctrl.State())
	}

	if _, err := f.ctrl.Send(ctx, "And molars?"); err != nil {
		t.Fatal(err)
	}
	second := f.api.asks[1]
	if second.SessionID == nil || *second.SessionID != 7 || len(second.History) != 2 {
		t.Errorf("second Ask() = %+v", second)
	}
	if len(f.nav.replaced) != 1 {
		t.Errorf("Replace() called again: %v", f.nav.replaced)
	}
}

func TestSendRejections(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		ended   bool
		used    int64
		plan    plan
		wantErr error
	}{
		{"empty", "", false, 0, apiclient.PlanFree, ErrEmptyPrompt},
		{"whitespace", "  \n\t", false, 0, apiclient.PlanFree, ErrEmptyPrompt},
		{"ended session", "hi", true, 0, apiclient.PlanFree, ErrSessionEnded},
		{"daily limit", "hi", false, 3, apiclient.PlanFree, ErrDailyLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{count: tt.used, session: &apiclient.ChatSession{ID: 4, IsEnded: tt.ended}}
			f := newFixture(t, api, tt.plan)
			if err := f.ctrl.Open(context.Background(), int64Ptr(4)); err != nil {
				t.Fatal(err)
			}
			before := len(f.ctrl.Messages())

			_, err := f.ctrl.Send(context.Background(), tt.prompt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if len(api.asks) != 0 {
				t.Errorf("Ask() called %d times", len(api.asks))
			}
			if got := len(f.ctrl.Messages()); got != before {
				t.Errorf("Messages() len = %d, want %d", got, before)
			}
		})
	}
}

func TestDailyLimitToast(t *testing.T) {
	f := newFixture(t, &fakeAPI{count: 3}, plan(apiclient.PlanFree))
	_ = f.ctrl.Open(context.Background(), nil)
	_, _ = f.ctrl.Send(context.Background(), "hi")

	last, ok := f.toast.Last()
	want := "You’ve used 3/3 free messages today. Upgrade for unlimited."
	if !ok || last.Kind != notify.KindError || last.Message != want {
		t.Errorf("toast = %+v, want %q", last, want)
	}
}

func TestPlusIgnoresDailyLimit(t *testing.T) {
	f := newFixture(t, &fakeAPI{count: 10, nextID: 1}, plan(apiclient.PlanPlus))
	_ = f.ctrl.Open(context.Background(), nil)
	if _, err := f.ctrl.Send(context.Background(), "hi"); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestSendWhileInFlight(t *testing.T) {
	api := &fakeAPI{nextID: 1, block: make(chan struct{}), started: make(chan struct{}, 1)}
	f := newFixture(t, api, plan(apiclient.PlanPlus))
	_ = f.ctrl.Open(context.Background(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Send(context.Background(), "first")
		done <- err
	}()
	<-api.started

	if f.ctrl.State() != StateSending {
		t.Errorf("State() = %v, want sending", f.ctrl.State())
	}
	if _, err := f.ctrl.Send(context.Background(), "second"); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("second Send() error = %v, want %v", err, ErrRequestInFlight)
	}
	close(api.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(api.asks) != 1 {
		t.Errorf("Ask() calls = %d, want 1", len(api.asks))
	}
}

func TestSendFailureAppendsErrorBubble(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		bubble string
	}{
		{"server message", &apiclient.APIError{Status: 500, Message: "Chat failed"}, "❌ Chat failed"},
		{"transport", errors.New("dial tcp: connection refused"), "❌ Something went wrong."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeAPI{askErr: tt.err}, plan(apiclient.PlanPlus))
			_ = f.ctrl.Open(context.Background(), nil)

			if _, err := f.ctrl.Send(context.Background(), "hello"); err == nil {
				t.Fatal("Send() error = nil")
			}
			msgs := f.ctrl.Messages()
			last := msgs[len(msgs)-1]
			if !last.Error || last.Content != tt.bubble {
				t.Errorf("last message = %+v, want error bubble %q", last, tt.bubble)
			}
			if f.ctrl.SessionID() != nil || f.ctrl.UsedToday() != 0 {
				t.Errorf("state changed after failure: session %v used %d", f.ctrl.SessionID(), f.ctrl.UsedToday())
			}

			// 错误气泡不进入历史
			f.api.askErr = nil
			_, _ = f.ctrl.Send(context.Background(), "again")
			if h := f.api.asks[1].History; len(h) != 1 || h[0].Text != "hello" {
				t.Errorf("retry history = %+v", h)
			}
		})
	}
}

func TestOpenExistingSession(t *testing.T) {
	title := "Crown prep"
	api := &fakeAPI{session: &apiclient.ChatSession{
		ID:    42,
		Title: &title,
		Messages: []apiclient.SessionMessage{
			{Role: "USER", Content: "q", CreatedAt: "2026-01-02T10:00:00Z"},
			{Role: "ASSISTANT", Content: "a", CreatedAt: "2026-01-02T10:00:01Z"},
		},
	}}
	f := newFixture(t, api, plan(apiclient.PlanFree))
	if err := f.ctrl.Open(context.Background(), int64Ptr(42)); err != nil {
		t.Fatal(err)
	}
	msgs := f.ctrl.Messages()
	if len(msgs) != 2 || msgs[0].Role != messagestore.RoleUser || msgs[1].Role != messagestore.RoleAssistant {
		t.Fatalf("Messages() = %+v", msgs)
	}
	if msgs[0].Timestamp != 1767348000000 {
		t.Errorf("Timestamp = %d", msgs[0].Timestamp)
	}
	if f.ctrl.Title() != title || f.ctrl.Ended() {
		t.Errorf("Title() = %q, Ended() = %v", f.ctrl.Title(), f.ctrl.Ended())
	}

	if err := f.ctrl.Open(context.Background(), int64Ptr(99)); !apiclient.IsStatus(err, http.StatusNotFound) {
		t.Errorf("Open(99) error = %v, want 404", err)
	}
}

func TestEndSession(t *testing.T) {
	api := &fakeAPI{session: &apiclient.ChatSession{ID: 42}}
	f := newFixture(t, api, plan(apiclient.PlanFree))
	_ = f.ctrl.Open(context.Background(), int64Ptr(42))

	if err := f.ctrl.EndSession(context.Background(), "Implant"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if len(api.endCalls) != 1 || api.endCalls[0] != 42 {
		t.Errorf("EndSession calls = %v", api.endCalls)
	}
	if len(f.nav.navigated) != 1 || f.nav.navigated[0] != RouteHome {
		t.Errorf("Navigate() calls = %v", f.nav.navigated)
	}
	if !f.ctrl.Ended() || f.ctrl.Title() != "Implant" {
		t.Errorf("Ended() = %v, Title() = %q", f.ctrl.Ended(), f.ctrl.Title())
	}
}

func TestEndSessionFailureStays(t *testing.T) {
	api := &fakeAPI{session: &apiclient.ChatSession{ID: 42}, endErr: errors.New("offline")}
	f := newFixture(t, api, plan(apiclient.PlanFree))
	_ = f.ctrl.Open(context.Background(), int64Ptr(42))

	if err := f.ctrl.EndSession(context.Background(), ""); err == nil {
		t.Fatal("EndSession() error = nil")
	}
	if len(f.nav.navigated) != 0 || f.ctrl.Ended() {
		t.Errorf("navigated = %v, ended = %v", f.nav.navigated, f.ctrl.Ended())
	}
}

func TestEndSessionWithoutSessionGoesHome(t *testing.T) {
	api := &fakeAPI{}
	f := newFixture(t, api, plan(apiclient.PlanFree))
	_ = f.ctrl.Open(context.Background(), nil)

	if err := f.ctrl.EndSession(context.Background(), ""); err != nil {
		t.Fatalf("EndSession() without session error = %v, want nil", err)
	}
	if len(api.endCalls) != 0 {
		t.Errorf("EndSession calls = %v, want none", api.endCalls)
	}
	if len(f.nav.navigated) != 1 || f.nav.navigated[0] != RouteHome {
		t.Errorf("Navigate() calls = %v, want [%s]", f.nav.navigated, RouteHome)
	}
}
