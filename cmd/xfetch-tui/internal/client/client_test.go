package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key")
}

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		json.NewEncoder(w).Encode(HistoryPage{})
	})

	if _, err := c.History(context.Background(), 10, 0); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("API key header = %q", gotKey)
	}
}

func TestClientHistory(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/history" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "25" || r.URL.Query().Get("offset") != "50" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(HistoryPage{
			Records: []Record{{ID: "rec-1", PostID: "123"}},
			Total:   1,
		})
	})

	page, err := c.History(context.Background(), 25, 50)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if page.Total != 1 || page.Records[0].ID != "rec-1" {
		t.Errorf("page = %+v", page)
	}
}

func TestClientDownload(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/downloads" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["post_url"] != "https://x.com/u/status/1" {
			t.Errorf("post_url = %v", body["post_url"])
		}
		if _, ok := body["selections"]; !ok {
			t.Error("selections missing from request")
		}
		json.NewEncoder(w).Encode(DownloadResult{PostID: "1", Items: []DownloadItem{{Index: 0, RecordID: "r1"}}})
	})

	result, err := c.Download(context.Background(), "https://x.com/u/status/1", []Selection{{Index: 0}})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.PostID != "1" || len(result.Items) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestClientErrorMessage(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "unable to fetch post"})
	})

	_, err := c.Resolve(context.Background(), "https://x.com/u/status/1")
	if err == nil {
		t.Fatal("Resolve() = nil, want error")
	}
	if got := err.Error(); !strings.Contains(got, "unable to fetch post") || !strings.Contains(got, "502") {
		t.Errorf("error = %q", got)
	}
}

func TestClientDeleteRecord(t *testing.T) {
	var gotPath string
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	})

	if err := c.DeleteRecord(context.Background(), "rec-9"); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if gotPath != "DELETE /api/v1/history/rec-9" {
		t.Errorf("request = %q", gotPath)
	}
}

func TestClientHealthy(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ready" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false, want true")
	}

	down := NewClient("http://127.0.0.1:1", "key")
	if down.Healthy(context.Background()) {
		t.Error("Healthy() = true for unreachable server")
	}
}
