package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
)

func TestUpdate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/lessons/17" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, credential.Static("tok"), 0, nil)
	err := c.Update(context.Background(), Update{
		ID:          "17",
		Description: "<p>body</p>",
		Fields:      map[string]any{"title": "Week 1", "duration": "45", "description": "stale"},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if body["description"] != "<p>body</p>" || body["title"] != "Week 1" || body["duration"] != "45" {
		t.Fatalf("body = %v", body)
	}
}

func TestUpdateFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, credential.Static("tok"), 0, nil)
	if err := c.Update(context.Background(), Update{ID: "1"}); !errors.Is(err, ErrPersist) {
		t.Fatalf("Update() error = %v, want ErrPersist", err)
	}
	if err := c.Update(context.Background(), Update{}); !errors.Is(err, ErrPersist) {
		t.Fatalf("Update() without id error = %v", err)
	}
	noCreds := New(srv.URL, credential.FromContext(), 0, nil)
	err := noCreds.Update(context.Background(), Update{ID: "1"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Update() without credential error = %v", err)
	}
}
