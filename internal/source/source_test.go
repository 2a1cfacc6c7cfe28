package source

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

const jsearchItem = `{
	"job_id": "abc123",
	"job_title": "DevOps Engineer",
	"employer_name": "Acme",
	"job_city": "Austin",
	"job_state": "TX",
	"job_posted_at_datetime_utc": "2024-06-01T10:00:00.000Z",
	"job_apply_link": "https://example.com/apply",
	"job_publisher": "LinkedIn",
	"job_description": "Terraform and AWS"
}`

func TestDecodeJSearchRecord(t *testing.T) {
	var item map[string]any
	if err := json.Unmarshal([]byte(jsearchItem), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := Decode([]any{item}, "jsearch", nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}

	p := got[0]
	if p.ID != "abc123" || p.Title != "DevOps Engineer" || p.Company != "Acme" {
		t.Fatalf("unexpected posting: %+v", p)
	}
	if p.Location.String() != "Austin, TX" {
		t.Fatalf("unexpected location: %q", p.Location.String())
	}
	if p.Source != "linkedin" || p.ApplyURL != "https://example.com/apply" {
		t.Fatalf("unexpected source fields: %+v", p)
	}
	if p.PostedAt == nil || !p.PostedAt.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at: %v", p.PostedAt)
	}
	if p.Description != "Terraform and AWS" {
		t.Fatalf("unexpected description: %q", p.Description)
	}
}

func TestDecodeFallbacks(t *testing.T) {
	items := []any{
		// numeric id, nested location
		map[string]any{"id": float64(42), "title": "Go Developer", "location": map[string]any{"city": "Berlin"}},
		// id falls back to the apply link
		map[string]any{"job_title": "SRE", "job_apply_link": "https://example.com/sre", "posted_at": "not a date"},
		// no id at all
		map[string]any{"title": "Anonymous", "job_posted_at_timestamp": float64(1717236000)},
		// malformed: title is an object
		map[string]any{"id": "bad", "title": map[string]any{"x": 1}},
	}

	got := Decode(items, "file", nil)
	if len(got) != 3 {
		t.Fatalf("expected malformed record to be skipped, got %d postings", len(got))
	}

	if got[0].ID != "42" || got[0].Location.City != "Berlin" || got[0].Source != "file" {
		t.Fatalf("unexpected first posting: %+v", got[0])
	}
	if got[1].ID != "https://example.com/sre" || got[1].PostedAt != nil {
		t.Fatalf("unexpected second posting: %+v", got[1])
	}
	if got[2].ID != "" || got[2].PostedAt == nil {
		t.Fatalf("unexpected third posting: %+v", got[2])
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		count   int
		wantErr bool
	}{
		{name: "array", content: `[` + jsearchItem + `, {"id": "2", "title": "Go"}]`, count: 2},
		{name: "jsearch response", content: `{"status": "OK", "data": [` + jsearchItem + `]}`, count: 1},
		{name: "empty array", content: `[]`, count: 0},
		{name: "object without data", content: `{"items": []}`, wantErr: true},
		{name: "scalar", content: `42`, wantErr: true},
		{name: "invalid json", content: `[`, wantErr: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strconv.Itoa(i)+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write file: %v", err)
			}

			got, err := NewFileSource(path, nil).Fetch(context.Background(), Query{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.count {
				t.Fatalf("expected %d postings, got %d", tt.count, len(got))
			}
		})
	}

	if _, err := NewFileSource(filepath.Join(dir, "missing.json"), nil).Fetch(context.Background(), Query{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestJSearchFetch(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-RapidAPI-Key"); got != "secret" {
			t.Errorf("unexpected api key header: %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "devops engineer" {
			t.Errorf("unexpected query: %q", got)
		}
		if got := r.URL.Query().Get("date_posted"); got != "week" {
			t.Errorf("unexpected date_posted: %q", got)
		}

		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()

		if page == "1" {
			gz.Write([]byte(`{"status": "OK", "data": [` + jsearchItem + `]}`))
			return
		}
		gz.Write([]byte(`{"status": "OK", "data": []}`))
	}))
	t.Cleanup(srv.Close)

	client := NewJSearch("secret", nil)
	client.APIURL = srv.URL
	client.HTTPClient = srv.Client()
	client.MaxPages = 3

	got, err := client.Fetch(context.Background(), Query{Keywords: []string{"devops", "engineer"}, PostedWithinDays: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 || got[0].ID != "abc123" {
		t.Fatalf("unexpected postings: %+v", got)
	}
	if len(pages) != 2 {
		t.Fatalf("expected to stop after the first empty page, requested %v", pages)
	}
}

func TestJSearchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewJSearch("secret", nil)
	client.APIURL = srv.URL
	client.HTTPClient = srv.Client()

	if _, err := client.Fetch(context.Background(), Query{}); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestDatePosted(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "all", 1: "today", 3: "3days", 5: "week", 7: "week", 14: "month", 90: "all"}
	for days, expect := range tests {
		if got := datePosted(days); got != expect {
			t.Fatalf("days %d: expected %q, got %q", days, expect, got)
		}
	}
}
