package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore talks to a Supabase-style object storage API: objects are read
// from the bucket's public path and written with the service key.
type HTTPStore struct {
	baseURL    string
	bucket     string
	serviceKey string
	maxBytes   int64
	client     *http.Client
}

type HTTPStoreConfig struct {
	BaseURL    string
	Bucket     string
	ServiceKey string
	Timeout    time.Duration
	// MaxBytes caps the size of a fetched object. Zero means 50 MiB.
	MaxBytes int64
}

func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("storage: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("storage: parse base url: %w", err)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &HTTPStore{
		baseURL:    base,
		bucket:     cfg.Bucket,
		serviceKey: cfg.ServiceKey,
		maxBytes:   maxBytes,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPStore) objectURL(prefix, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s%s/%s", s.baseURL, prefix, url.PathEscape(s.bucket), escapePath(key))
}

func escapePath(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Fetch downloads a bucket-relative path or an absolute http(s) URL.
func (s *HTTPStore) Fetch(ctx context.Context, location string) ([]byte, error) {
	target := location
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		key, err := sanitizeKey(location)
		if err != nil {
			return nil, err
		}
		target = s.objectURL("public/", key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 && resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w: %d bytes over limit %d", location, ErrTooLarge, resp.ContentLength, s.maxBytes)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w: limit %d bytes", location, ErrTooLarge, s.maxBytes)
	}
	return body, nil
}

// Store uploads data at hint with upsert semantics.
func (s *HTTPStore) Store(ctx context.Context, data []byte, hint, contentType string) (string, error) {
	key, err := sanitizeKey(hint)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL("", key), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "3600")
	req.Header.Set("x-upsert", "true")
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("apikey", s.serviceKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return key, nil
}

func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func classifyStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusBadRequest && bytes.Contains(bytes.ToLower(body), []byte("not_found")):
		return ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("storage: status %d: %s", code, msg)
}
