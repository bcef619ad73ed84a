package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchTextHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "kioku/") {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><script>nope()</script><body><h1>Title</h1><p>body   text</p></body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	text, err := f.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "Title body text" {
		t.Errorf("sanitized text = %q", text)
	}
}

func TestFetchTextBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	if _, err := f.FetchText(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchTextRejectsBinaryContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	_, err := f.FetchText(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "content-type") {
		t.Fatalf("expected content-type error, got %v", err)
	}
}

func TestFetchTextAllowList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// The test server listens on 127.0.0.1, which is not on the list.
	f := NewHTTPFetcher(WithAllowedDomains([]string{"example.org"}))
	_, err := f.FetchText(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "allowlisted") {
		t.Fatalf("expected allow-list rejection, got %v", err)
	}

	open := NewHTTPFetcher(WithAllowedDomains([]string{"127.0.0.1"}))
	if _, err := open.FetchText(context.Background(), srv.URL); err != nil {
		t.Fatalf("allow-listed host rejected: %v", err)
	}
}

func TestFetchTextSubdomainAllowed(t *testing.T) {
	f := NewHTTPFetcher(WithAllowedDomains([]string{"example.org"}))
	if !f.domainAllowed("https://docs.example.org/page") {
		t.Error("subdomain of an allow-listed host should be allowed")
	}
	if f.domainAllowed("https://badexample.org/page") {
		t.Error("suffix match must be on a dot boundary")
	}
}

func TestFetchTextByteCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(WithMaxBytes(100))
	text, err := f.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(text) != 100 {
		t.Errorf("got %d bytes, want cap of 100", len(text))
	}
}

func TestFetchTextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(WithTimeout(20 * time.Millisecond))
	if _, err := f.FetchText(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}
