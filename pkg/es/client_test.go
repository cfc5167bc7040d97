package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dentgo-go/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *SessionIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewSessionIndex(client, "dentgo_sessions")
}

func TestIndexSession(t *testing.T) {
	var gotPath string
	var gotDoc model.SessionDocument
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	doc := model.SessionDocument{SessionID: 42, UserID: 7, Title: "Molar pain", Content: "USER: ache"}
	if err := idx.IndexSession(context.Background(), doc); err != nil {
		t.Fatalf("IndexSession() error = %v", err)
	}
	if gotPath != "/dentgo_sessions/_doc/42" {
		t.Errorf("path = %q, want /dentgo_sessions/_doc/42", gotPath)
	}
	if gotDoc.UserID != 7 || gotDoc.Title != "Molar pain" {
		t.Errorf("indexed doc = %+v", gotDoc)
	}
}

func TestIndexSessionError(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	})
	if err := idx.IndexSession(context.Background(), model.SessionDocument{SessionID: 1}); err == nil {
		t.Error("IndexSession() error = nil, want error")
	}
}

func TestSearchSessions(t *testing.T) {
	var gotBody string
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_score":2.5,"_source":{"session_id":3,"user_id":9,"title":"Crown","content":"long text"},"highlight":{"content":["<em>crown</em> fit"]}},
			{"_score":1.0,"_source":{"session_id":4,"user_id":9,"title":"Implant","content":"short"}}
		]}}`))
	})

	hits, err := idx.SearchSessions(context.Background(), 9, "crown", 10)
	if err != nil {
		t.Fatalf("SearchSessions() error = %v", err)
	}
	if !strings.Contains(gotBody, `"user_id":9`) {
		t.Errorf("query body = %s, want user filter", gotBody)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].SessionID != 3 || hits[0].Snippet != "<em>crown</em> fit" {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[1].Snippet != "short" {
		t.Errorf("hits[1].Snippet = %q, want %q", hits[1].Snippet, "short")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc…"},
		{"牙齿疼痛", 2, "牙齿…"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
