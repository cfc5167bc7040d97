package apiclient_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"dentgo-go/internal/localstore"
	"dentgo-go/internal/testutil/apitest"
	"dentgo-go/pkg/apiclient"
	"dentgo-go/pkg/payments"
)

func TestClientAgainstServer(t *testing.T) {
	srv := apitest.New()
	srv.Gateway.Cards["pm_visa"] = payments.CardDetails{Brand: "visa", Last4: "4242"}
	ts := srv.Start(t)
	ctx := context.Background()
	storage := localstore.NewMemory()

	c, err := apiclient.New(ts.URL, apiclient.WithStorage(storage))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Me(ctx); !apiclient.IsUnauthorized(err) {
		t.Fatalf("Me() before login error = %v, want 401", err)
	}
	user, err := c.LoginWithGoogle(ctx, apitest.UserCredential)
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if user.Email != "dr@example.com" {
		t.Errorf("user = %+v", user)
	}

	// 新进程从本地存储恢复 cookie
	restored, err := apiclient.New(ts.URL, apiclient.WithStorage(storage))
	if err != nil {
		t.Fatalf("New() restore error = %v", err)
	}
	if _, err := restored.Me(ctx); err != nil {
		t.Fatalf("Me() with restored cookies error = %v", err)
	}
	if err := restored.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	resp, err := restored.Ask(ctx, apiclient.AskRequest{Prompt: "Hello"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.SessionID == nil || resp.Answer == "" {
		t.Fatalf("Ask() = %+v", resp)
	}
	if n, err := restored.Count(ctx, ""); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v, want 1", n, err)
	}
	_, err = restored.Ask(ctx, apiclient.AskRequest{Prompt: "Again", SessionID: resp.SessionID})
	if !apiclient.IsStatus(err, http.StatusTooManyRequests) {
		t.Errorf("second Ask() error = %v, want 429", err)
	}

	sessions, err := restored.ListSessions(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListSessions() = %v, %v", sessions, err)
	}
	session, err := restored.GetSession(ctx, *resp.SessionID)
	if err != nil || len(session.Messages) != 2 || session.Messages[0].Role != "USER" {
		t.Fatalf("GetSession() = %+v, %v", session, err)
	}
	ended, err := restored.EndSession(ctx, *resp.SessionID, "Greeting")
	if err != nil || !ended.Ended() || ended.Title == nil || *ended.Title != "Greeting" {
		t.Fatalf("EndSession() = %+v, %v", ended, err)
	}
	if _, err := restored.EndSession(ctx, *resp.SessionID, ""); !apiclient.IsStatus(err, http.StatusConflict) {
		t.Errorf("second EndSession() error = %v, want 409", err)
	}

	secret, err := restored.CreateSetupIntent(ctx)
	if err != nil || !strings.HasPrefix(secret, "seti_secret_") {
		t.Fatalf("CreateSetupIntent() = %q, %v", secret, err)
	}
	card, err := restored.AddCard(ctx, "pm_visa", "")
	if err != nil || card.Last4 != "4242" {
		t.Fatalf("AddCard() = %+v, %v", card, err)
	}
	intent, err := restored.CreateSubscription(ctx, apitest.PriceID, card.PaymentMethodID)
	if err != nil || intent.Status != apiclient.StatusActive {
		t.Fatalf("CreateSubscription() = %+v, %v", intent, err)
	}
	sub, err := restored.GetSubscription(ctx)
	if err != nil || sub.Plan != apiclient.PlanPlus {
		t.Fatalf("GetSubscription() = %+v, %v", sub, err)
	}

	upload, err := restored.UploadXRay(ctx, "Jane Doe", "scan.png", strings.NewReader("png bytes"))
	if err != nil || upload.PatientName != "Jane Doe" || upload.URL == "" {
		t.Fatalf("UploadXRay() = %+v, %v", upload, err)
	}

	restored.Logout(ctx)
	if _, err := restored.Me(ctx); !apiclient.IsUnauthorized(err) {
		t.Errorf("Me() after logout error = %v, want 401", err)
	}
	again, _ := apiclient.New(ts.URL, apiclient.WithStorage(storage))
	if _, err := again.Me(ctx); !apiclient.IsUnauthorized(err) {
		t.Errorf("Me() with persisted cookies after logout error = %v, want 401", err)
	}
}
