package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/go-cmp/cmp"

	"github.com/any-hub/asset-hub/internal/assetcache"
	"github.com/any-hub/asset-hub/internal/store"
)

type fakeStatus struct {
	readyErr error
	info     store.Info
	stats    assetcache.Stats
}

func (f fakeStatus) ReadyState() error { return f.readyErr }
func (f fakeStatus) StoreInfo() store.Info { return f.info }
func (f fakeStatus) Stats() assetcache.Stats { return f.stats }

func TestHealthzReportsReady(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, fakeStatus{})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ready"}` {
		t.Fatalf("unexpected body %s", string(body))
	}
}

func TestHealthzReportsInitFailure(t *testing.T) {
	app := fiber.New()
	initErr := &store.InitializationError{Backend: "sqlite", Name: "asset-cache", Err: errors.New("storage disabled")}
	RegisterDiagnosticsRoutes(app, fakeStatus{readyErr: initErr})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if payload["error"] != initErr.Error() {
		t.Fatalf("expected init error in payload, got %+v", payload)
	}
}

func TestStatusReportsStoreAndStats(t *testing.T) {
	app := fiber.New()
	status := fakeStatus{
		info:  store.Info{Backend: "file", Name: "assets", SchemaVersion: store.SchemaVersion, Location: "/var/lib/assets"},
		stats: assetcache.Stats{Hits: 3, Misses: 2, Fetches: 2, MemoryHits: 1},
	}
	RegisterDiagnosticsRoutes(app, status)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/status", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	want := statusPayload{Ready: true, Store: status.info, Stats: status.stats}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
}
