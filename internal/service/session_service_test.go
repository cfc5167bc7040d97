package service

import (
	"context"
	"errors"
	"testing"

	"dentgo-go/internal/model"
	"dentgo-go/internal/testutil"
)

type fakeSearcher struct {
	hits    []model.SessionSearchHit
	userID  uint
	deleted []uint
}

func (f *fakeSearcher) SearchSessions(_ context.Context, userID uint, _ string, _ int) ([]model.SessionSearchHit, error) {
	f.userID = userID
	return f.hits, nil
}

func (f *fakeSearcher) DeleteUserSessions(_ context.Context, userID uint) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

func TestSessionListAndGet(t *testing.T) {
	chats := testutil.NewChatRepo()
	_ = chats.CreateSession(&model.ChatSession{UserID: 1})
	_ = chats.CreateSession(&model.ChatSession{UserID: 1})
	_ = chats.CreateSession(&model.ChatSession{UserID: 2})
	svc := NewSessionService(chats, nil, nil)

	list, err := svc.List(1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 {
		t.Errorf("List() = %+v, want newest first", list)
	}

	empty, _ := svc.List(3)
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() for new user = %v, want empty slice", empty)
	}

	if _, err := svc.Get(1, 3); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(foreign) error = %v, want ErrSessionNotFound", err)
	}
	got, err := svc.Get(1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Messages == nil {
		t.Error("Get() Messages = nil, want empty slice")
	}
}

func TestSessionEnd(t *testing.T) {
	chats := testutil.NewChatRepo()
	_ = chats.CreateSession(&model.ChatSession{UserID: 1})
	pub := &testutil.Publisher{}
	svc := NewSessionService(chats, pub, nil)

	title := "  Molar pain  "
	session, err := svc.End(context.Background(), 1, 1, &title)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if !session.IsEnded() || session.Title == nil || *session.Title != "Molar pain" {
		t.Errorf("End() = %+v", session)
	}
	if len(pub.Tasks) != 1 || pub.Tasks[0].SessionID != 1 || pub.Tasks[0].Title != "Molar pain" {
		t.Errorf("published = %+v", pub.Tasks)
	}

	if _, err := svc.End(context.Background(), 1, 1, nil); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("second End() error = %v, want ErrSessionEnded", err)
	}
}

func TestSessionEndBlankTitleAndPublishFailure(t *testing.T) {
	chats := testutil.NewChatRepo()
	_ = chats.CreateSession(&model.ChatSession{UserID: 1})
	pub := &testutil.Publisher{Err: errors.New("broker down")}
	svc := NewSessionService(chats, pub, nil)

	blank := "   "
	session, err := svc.End(context.Background(), 1, 1, &blank)
	if err != nil {
		t.Fatalf("End() error = %v, want nil when publishing fails", err)
	}
	if session.Title != nil {
		t.Errorf("Title = %q, want nil", *session.Title)
	}
}

func TestSessionSearch(t *testing.T) {
	searcher := &fakeSearcher{hits: []model.SessionSearchHit{{SessionID: 5, Title: "Crown"}}}
	svc := NewSessionService(testutil.NewChatRepo(), nil, searcher)

	hits, err := svc.Search(context.Background(), 9, "crown")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || searcher.userID != 9 {
		t.Errorf("Search() = %+v, userID = %d", hits, searcher.userID)
	}
	if _, err := svc.Search(context.Background(), 9, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Search(blank) error = %v, want ErrInvalidInput", err)
	}
	if _, err := NewSessionService(testutil.NewChatRepo(), nil, nil).Search(context.Background(), 9, "x"); !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("Search() without index error = %v, want ErrSearchUnavailable", err)
	}
}
