package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewHTTPFetcherUsesTimeout(t *testing.T) {
	f, err := NewHTTPFetcher(HTTPOptions{Upstream: "https://cdn.example/game", Timeout: 45 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", f.client.Timeout)
	}
}

func TestNewHTTPFetcherRejectsBadUpstream(t *testing.T) {
	for _, upstream := range []string{"", "ftp://cdn.example", "https://"} {
		if _, err := NewHTTPFetcher(HTTPOptions{Upstream: upstream}); err == nil {
			t.Fatalf("expected error for upstream %q", upstream)
		}
	}
}

func TestResolveKeys(t *testing.T) {
	f, err := NewHTTPFetcher(HTTPOptions{Upstream: "https://cdn.example/game"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testCases := []struct {
		key  string
		want string
	}{
		{"a.bin", "https://cdn.example/game/a.bin"},
		{"/levels/1.lvl", "https://cdn.example/game/levels/1.lvl"},
		{"sfx/jump.ogg?v=2", "https://cdn.example/game/sfx/jump.ogg?v=2"},
		{"https://cdn.example/shared/x.png", "https://cdn.example/shared/x.png"},
		{"HTTPS://CDN.example/x.png", "https://CDN.example/x.png"},
	}
	for _, tc := range testCases {
		got, err := f.Resolve(tc.key)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.key, err)
		}
		if got.String() != tc.want {
			t.Fatalf("resolve %q: expected %s, got %s", tc.key, tc.want, got.String())
		}
	}

	if _, err := f.Resolve("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}

	for _, key := range []string{
		"https://other.example/x.png",
		"http://cdn.example/game/a.bin",
		"http://127.0.0.1:8080/admin",
		"//169.254.169.254/latest/meta-data",
	} {
		if _, err := f.Resolve(key); !errors.Is(err, ErrForeignHost) {
			t.Fatalf("resolve %q: expected ErrForeignHost, got %v", key, err)
		}
	}
}

func TestFetchRefusesForeignHost(t *testing.T) {
	var hits atomic.Int64
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal-secret"))
	}))
	defer internal.Close()

	f, err := NewHTTPFetcher(HTTPOptions{Upstream: "https://assets.example.com/game/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := f.Fetch(context.Background(), internal.URL+"/admin")
	if !errors.Is(err, ErrForeignHost) || resp != nil {
		t.Fatalf("expected ErrForeignHost, got resp=%v err=%v", resp, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("foreign host must not be contacted")
	}
}

func TestFetchReturnsAnyStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "asset-hub-test" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/a.bin":
			_, _ = w.Write([]byte{1, 2, 3})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	f, err := NewHTTPFetcher(HTTPOptions{Upstream: upstream.URL, UserAgent: "asset-hub-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := f.Fetch(context.Background(), "a.bin")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.Status != http.StatusOK || string(body) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected response status=%d body=%v", resp.Status, body)
	}

	resp, err = f.Fetch(context.Background(), "missing.bin")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	resp.Body.Close()
	if resp.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	f, err := NewHTTPFetcher(HTTPOptions{Upstream: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "a.bin"); err == nil {
		t.Fatalf("expected transport error for closed server")
	}
}
