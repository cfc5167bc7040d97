package messagestore

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"dentgo-go/internal/localstore"
)

func newStore(t *testing.T) (*Store, *localstore.Memory) {
	t.Helper()
	mem := localstore.NewMemory()
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, mem
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	s, _ := newStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Add(NewMessage(RoleUser, strconv.Itoa(i))); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if got := s.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	for i, m := range s.Messages() {
		if m.Content != strconv.Itoa(i) {
			t.Errorf("Messages()[%d].Content = %q, want %q", i, m.Content, strconv.Itoa(i))
		}
	}
}

func TestResetAlwaysEmpties(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() on empty error = %v", err)
	}
	_ = s.Add(NewMessage(RoleUser, "a"))
	_ = s.Add(NewMessage(RoleAssistant, "b"))
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if got := s.Len(); got != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", got)
	}
}

func TestLoadIsDeepCopy(t *testing.T) {
	s, _ := newStore(t)
	_ = s.Add(NewMessage(RoleUser, "stale"))

	input := []ChatMessage{
		{ID: "1", Role: RoleUser, Content: "x-ray?", Timestamp: 10, Images: []string{"a.png"}},
		{ID: "2", Role: RoleAssistant, Content: "Looks fine", Timestamp: 11},
	}
	if err := s.Load(input); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Messages(); !reflect.DeepEqual(got, input) {
		t.Fatalf("Messages() = %+v, want %+v", got, input)
	}

	input[0].Content = "mutated"
	input[0].Images[0] = "mutated.png"
	got := s.Messages()
	if got[0].Content != "x-ray?" || got[0].Images[0] != "a.png" {
		t.Errorf("store shares memory with Load() input: %+v", got[0])
	}

	got[1].Content = "mutated"
	if s.Messages()[1].Content != "Looks fine" {
		t.Error("store shares memory with Messages() result")
	}
}

func TestReplaceLast(t *testing.T) {
	s, _ := newStore(t)
	content := "filled"
	if err := s.ReplaceLast(Patch{Content: &content}); err != nil {
		t.Fatalf("ReplaceLast() on empty error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("ReplaceLast() on empty list appended a message")
	}

	_ = s.Add(ChatMessage{ID: "1", Role: RoleUser, Content: "q", Timestamp: 1})
	_ = s.Add(ChatMessage{ID: "2", Role: RoleAssistant, Content: "…", Timestamp: 2})
	flag := true
	if err := s.ReplaceLast(Patch{Content: &content, Error: &flag}); err != nil {
		t.Fatalf("ReplaceLast() error = %v", err)
	}
	msgs := s.Messages()
	want := ChatMessage{ID: "2", Role: RoleAssistant, Content: "filled", Timestamp: 2, Error: true}
	if !reflect.DeepEqual(msgs[1], want) {
		t.Errorf("last = %+v, want %+v", msgs[1], want)
	}
	if msgs[0].Content != "q" {
		t.Errorf("first message changed: %+v", msgs[0])
	}
}

func TestRehydrate(t *testing.T) {
	s, mem := newStore(t)
	_ = s.Add(ChatMessage{ID: "1", Role: RoleUser, Content: "persisted", Timestamp: 5})

	again, err := New(mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if msgs := again.Messages(); len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Errorf("rehydrated = %+v", msgs)
	}
}

func TestRehydrateCorrupt(t *testing.T) {
	mem := localstore.NewMemory()
	_ = mem.Set(StorageKey, "{not json")
	s, err := New(mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestPersistFailure(t *testing.T) {
	s, mem := newStore(t)
	if err := s.Add(NewMessage(RoleUser, "kept")); err != nil {
		t.Fatal(err)
	}
	mem.Err = errors.New("disk full")

	content := "changed"
	tests := []struct {
		name string
		op   func() error
	}{
		{"Add", func() error { return s.Add(NewMessage(RoleUser, "x")) }},
		{"ReplaceLast", func() error { return s.ReplaceLast(Patch{Content: &content}) }},
		{"Reset", s.Reset},
		{"Load", func() error { return s.Load([]ChatMessage{NewMessage(RoleUser, "a"), NewMessage(RoleUser, "b")}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); err == nil {
				t.Fatalf("%s() error = nil, want persistence error", tt.name)
			}
			msgs := s.Messages()
			if s.Len() != 1 || msgs[0].Content != "kept" {
				t.Errorf("after failed %s() messages = %+v, want unchanged", tt.name, msgs)
			}
		})
	}
}
