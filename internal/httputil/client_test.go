package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 3, Timeout: 5 * time.Second})
	resp, err := client.Get(context.Background(), "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := DecodeResponse(resp, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK {
		t.Fatalf("unexpected body: %+v", body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientStopsAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 2})
	resp, err := client.Get(context.Background(), "/limited")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected final 429, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", got)
	}
}

func TestClientSendsAuthAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-123" {
			t.Errorf("missing bearer header: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type: %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "key-123"})
	resp, err := client.Post(context.Background(), "/submit", map[string]string{"code": "1234"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := DecodeResponse(resp, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDecodeResponseErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid phone number"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	resp, err := client.Get(context.Background(), "/bad")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	err = DecodeResponse(resp, nil)
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "status 400") || !strings.Contains(err.Error(), "invalid phone number") {
		t.Fatalf("error lacks detail: %v", err)
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("hello world"), 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !truncated || string(body) != "hello" {
		t.Fatalf("unexpected result: %q truncated=%v", body, truncated)
	}

	body, truncated, err = ReadAllWithLimit(strings.NewReader("hi"), 5)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if truncated || string(body) != "hi" {
		t.Fatalf("unexpected result: %q truncated=%v", body, truncated)
	}

	if _, err := ReadAllStrict(strings.NewReader("too long"), 3); err == nil {
		t.Fatalf("expected strict read to fail over the limit")
	}
}
