package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dentgo-go/internal/config"
	"dentgo-go/internal/localstore"
	"dentgo-go/internal/notify"
	"dentgo-go/internal/testutil/apitest"
)

// harness 模拟多次独立的命令行调用，它们共享同一份本地存储。
type harness struct {
	t       *testing.T
	api     *apitest.Server
	base    string
	storage *localstore.Memory
	toasts  *notify.Recorder
	cfgPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := apitest.New()
	ts := api.Start(t)
	return &harness{
		t:       t,
		api:     api,
		base:    ts.URL,
		storage: localstore.NewMemory(),
		toasts:  &notify.Recorder{},
		cfgPath: filepath.Join(t.TempDir(), "missing.yaml"),
	}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd(func(cfg *config.ClientConfig, _ io.Writer) (*App, error) {
		cfg.APIBase = h.base
		cfg.FreeMessagesPerDay = 1
		cfg.PriceID = apitest.PriceID
		cfg.PortalReturnURL = "http://app.dentgo.test/"
		return Assemble(cfg, h.storage, h.toasts)
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", h.cfgPath))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	if err != nil {
		h.t.Fatalf("dentgo %v error = %v\n%s", args, err, out)
	}
	return out
}

func (h *harness) lastToast() notify.Toast {
	h.t.Helper()
	last, ok := h.toasts.Last()
	if !ok {
		h.t.Fatal("no toast recorded")
	}
	return last
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	h.mustRun("", "login", "--credential", apitest.UserCredential)
	if got := h.lastToast().Message; got != "Signed in as dr@example.com" {
		t.Errorf("toast = %q", got)
	}

	out := h.mustRun("", "whoami")
	for _, want := range []string{"Dr Smile", "dr@example.com", "Plan:  FREE"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q:\n%s", want, out)
		}
	}

	h.mustRun("", "logout")
	if _, err := h.run("", "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Errorf("whoami after logout error = %v, want %v", err, errNotLoggedIn)
	}
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("", "login"); err == nil {
		t.Error("login without --credential error = nil")
	}
	if _, err := h.run("", "login", "--credential", "forged"); err == nil {
		t.Error("login with unknown credential error = nil")
	}
	if got := h.lastToast(); got.Kind != notify.KindError || !strings.HasPrefix(got.Message, "Login failed") {
		t.Errorf("toast = %+v", got)
	}
}

func TestChatEndBeforeFirstMessage(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)

	out := h.mustRun("/end\n", "chat")
	if !strings.Contains(out, "Session ended.") || strings.Contains(out, "❌") {
		t.Errorf("chat output:\n%s", out)
	}
}

func TestChatSessionFlow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)

	out := h.mustRun("Hello\n/end Molar pain\n", "chat")
	for _, want := range []string{"Hey, I'm Dentgo", "Consider a periapical radiograph.", "Session ended."} {
		if !strings.Contains(out, want) {
			t.Errorf("chat output missing %q:\n%s", want, out)
		}
	}

	out = h.mustRun("", "history")
	if !strings.Contains(out, "Molar pain") || !strings.Contains(out, "ended") {
		t.Errorf("history output:\n%s", out)
	}

	out = h.mustRun("", "show", "1")
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "Consider a periapical radiograph.") {
		t.Errorf("show output:\n%s", out)
	}

	out = h.mustRun("", "export", "--format", "json", "--session", "1")
	if !strings.Contains(out, `"sessionId": 1`) || !strings.Contains(out, `"ended": true`) {
		t.Errorf("export output:\n%s", out)
	}

	out = h.mustRun("", "export", "--format", "md")
	if !strings.Contains(out, "**You:**") || strings.Contains(out, "Hey, I'm Dentgo") {
		t.Errorf("local markdown export:\n%s", out)
	}

	out = h.mustRun("more?\n/quit\n", "chat", "--session", "1")
	if !strings.Contains(out, "This session has ended.") {
		t.Errorf("ended session output:\n%s", out)
	}
}

func TestChatDailyLimit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)
	h.mustRun("Hello\n/quit\n", "chat")

	h.mustRun("Again\n/quit\n", "chat")
	want := "You’ve used 1/1 free messages today. Upgrade for unlimited."
	if got := h.lastToast(); got.Kind != notify.KindError || got.Message != want {
		t.Errorf("toast = %+v, want %q", got, want)
	}
}

func TestSubscribePlus(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)

	h.mustRun("", "subscribe", "--plan", "plus", "--payment-method", "pm_card_visa", "--nickname", "Clinic")
	if got := h.lastToast().Message; got != "Subscription successful!" {
		t.Errorf("toast = %q", got)
	}
	if h.api.Gateway.LastPMID != "pm_card_visa" || h.api.Gateway.LastPriceID != apitest.PriceID {
		t.Errorf("gateway got pm %q price %q", h.api.Gateway.LastPMID, h.api.Gateway.LastPriceID)
	}

	out := h.mustRun("", "cards", "list")
	if !strings.Contains(out, "Clinic") || !strings.Contains(out, "visa") {
		t.Errorf("cards list output:\n%s", out)
	}
	if out := h.mustRun("", "whoami"); !strings.Contains(out, "Plan:  PLUS") {
		t.Errorf("whoami output:\n%s", out)
	}
	if out := h.mustRun("", "portal"); !strings.Contains(out, "https://billing.example.com/cus_1") {
		t.Errorf("portal output:\n%s", out)
	}

	h.mustRun("", "cancel-subscription")
	if out := h.mustRun("", "whoami"); !strings.Contains(out, "Plan:  FREE") {
		t.Errorf("whoami after cancel:\n%s", out)
	}
}

func TestSubscribeBasic(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)
	h.mustRun("", "subscribe", "--plan", "basic")
	if got := h.lastToast().Message; got != "Basic plan activated!" {
		t.Errorf("toast = %q", got)
	}
	if _, err := h.run("", "subscribe", "--plan", "gold"); err == nil {
		t.Error("subscribe --plan gold error = nil")
	}
}

func TestSubscribePlusWithoutPaymentMethod(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)
	if _, err := h.run("", "subscribe", "--plan", "plus"); err == nil {
		t.Fatal("subscribe without a card error = nil")
	}
	if got := h.lastToast(); got.Kind != notify.KindError {
		t.Errorf("toast = %+v", got)
	}
}

func TestCardsAddRemove(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)

	h.mustRun("", "cards", "add", "pm_test_1234")
	if got := h.lastToast().Message; got != "Card unknown •••• 1234 added" {
		t.Errorf("toast = %q", got)
	}
	if len(h.api.Cards.Cards) != 1 {
		t.Fatalf("stored cards = %d, want 1", len(h.api.Cards.Cards))
	}
	h.mustRun("", "cards", "remove", h.api.Cards.Cards[0].ID)
	if out := h.mustRun("", "cards", "list"); !strings.Contains(out, "No saved cards.") {
		t.Errorf("cards list output:\n%s", out)
	}
	if _, err := h.run("", "cards", "remove", "missing"); err == nil {
		t.Error("remove missing card error = nil")
	}
}

func TestPlans(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("", "plans")
	for _, want := range []string{"Basic", "Free, 1 message/day", "$25.00/mo", "Unlimited messages"} {
		if !strings.Contains(out, want) {
			t.Errorf("plans output missing %q:\n%s", want, out)
		}
	}
}

func TestNotificationsAndXRay(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)

	if out := h.mustRun("", "notifications"); !strings.Contains(out, "No notifications.") {
		t.Errorf("notifications output:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "molar.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	h.mustRun("", "xray", "--patient", "Jane Doe", "--file", path)
	if got := h.lastToast().Message; got != "Uploaded X-ray 1 for Jane Doe" {
		t.Errorf("toast = %q", got)
	}
	if _, err := h.run("", "xray", "--patient", "Jane Doe"); err == nil {
		t.Error("xray without --file error = nil")
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{"history"}, {"cards", "list"}, {"notifications"}, {"portal"}} {
		if _, err := h.run("", args...); !errors.Is(err, errNotLoggedIn) {
			t.Errorf("dentgo %v error = %v, want %v", args, err, errNotLoggedIn)
		}
	}
	if _, err := h.run("", "delete-account"); err == nil {
		t.Error("delete-account without --yes error = nil")
	}
	if _, err := h.run("", "export", "--format", "pdf"); err == nil {
		t.Error("export --format pdf error = nil")
	}
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "login", "--credential", apitest.UserCredential)
	h.mustRun("", "delete-account", "--yes")
	if got := h.lastToast().Message; got != "Account deleted" {
		t.Errorf("toast = %q", got)
	}
	if len(h.api.Users.Users) != 0 {
		t.Errorf("users left = %d", len(h.api.Users.Users))
	}
}
