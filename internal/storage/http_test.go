package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestHTTPStore(t *testing.T, h http.HandlerFunc) *HTTPStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store, err := NewHTTPStore(HTTPStoreConfig{BaseURL: srv.URL, Bucket: "retail-captures", ServiceKey: "svc"})
	if err != nil {
		t.Fatalf("NewHTTPStore() error = %v", err)
	}
	return store
}

func TestHTTPStoreFetch(t *testing.T) {
	store := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/public/retail-captures/uploads/shelf 1.jpg" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte("img"))
	})

	data, err := store.Fetch(context.Background(), "uploads/shelf 1.jpg")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "img" {
		t.Fatalf("data = %q", data)
	}
}

func TestHTTPStoreClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusNotFound, "", ErrNotFound},
		{http.StatusBadRequest, `{"error":"not_found"}`, ErrNotFound},
		{http.StatusServiceUnavailable, "", ErrTransient},
		{http.StatusTooManyRequests, "", ErrTransient},
	}
	for _, tc := range cases {
		store := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		if _, err := store.Fetch(context.Background(), "a.jpg"); !errors.Is(err, tc.want) {
			t.Errorf("status %d: error = %v, want %v", tc.status, err, tc.want)
		}
	}

	store := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := store.Fetch(context.Background(), "a.jpg")
	if err == nil || errors.Is(err, ErrTransient) || errors.Is(err, ErrNotFound) {
		t.Errorf("status 403: error = %v, want permanent failure", err)
	}
}

func TestHTTPStoreStore(t *testing.T) {
	store := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/storage/v1/object/retail-captures/processed/processed_x.jpg" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer svc" || r.Header.Get("x-upsert") != "true" {
			t.Errorf("headers = %v", r.Header)
		}
		if r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "out" {
			t.Errorf("body = %q", body)
		}
		_, _ = w.Write([]byte(`{"Key":"retail-captures/processed/processed_x.jpg"}`))
	})

	loc, err := store.Store(context.Background(), []byte("out"), "processed/processed_x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if loc != "processed/processed_x.jpg" {
		t.Fatalf("location = %q", loc)
	}
}

func TestHTTPStoreNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store, _ := NewHTTPStore(HTTPStoreConfig{BaseURL: url, Bucket: "b"})
	if _, err := store.Fetch(context.Background(), "a.jpg"); !errors.Is(err, ErrTransient) {
		t.Fatalf("Fetch() error = %v, want ErrTransient", err)
	}
}

func TestHTTPStoreFetchRejectsOversizedObject(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 64)
	cases := map[string]http.HandlerFunc{
		"content length": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		},
		"chunked": func(w http.ResponseWriter, r *http.Request) {
			for i := 0; i < len(payload); i += 8 {
				_, _ = w.Write(payload[i : i+8])
				w.(http.Flusher).Flush()
			}
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				h(w, r)
			}))
			t.Cleanup(srv.Close)
			hs, err := NewHTTPStore(HTTPStoreConfig{BaseURL: srv.URL, Bucket: "b", MaxBytes: 16})
			if err != nil {
				t.Fatalf("NewHTTPStore() error = %v", err)
			}
			store, _ := newTestRetrying(hs)

			_, err = store.Fetch(context.Background(), "big.jpg")
			if !errors.Is(err, ErrTooLarge) || errors.Is(err, ErrTransient) {
				t.Fatalf("Fetch() error = %v, want ErrTooLarge", err)
			}
			if n := calls.Load(); n != 1 {
				t.Fatalf("calls = %d, oversized objects must not be retried", n)
			}
		})
	}
}

func TestHTTPStoreFetchAllowsObjectAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 16))
	}))
	t.Cleanup(srv.Close)
	store, _ := NewHTTPStore(HTTPStoreConfig{BaseURL: srv.URL, Bucket: "b", MaxBytes: 16})

	data, err := store.Fetch(context.Background(), "ok.jpg")
	if err != nil || len(data) != 16 {
		t.Fatalf("Fetch() = %d bytes, %v", len(data), err)
	}
}
