package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/example/farmadisplay/internal/display"
	"github.com/example/farmadisplay/internal/models"
)

type fakeFetcher struct {
	pharmacyID string
	cfg        *models.DisplayConfig
	fetchErr   error
	resolveErr error
	heartbeats []HeartbeatRequest
}

func (f *fakeFetcher) ResolveDisplay(context.Context, string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.pharmacyID, nil
}

func (f *fakeFetcher) FetchConfig(context.Context, string) (*models.DisplayConfig, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	cfg := *f.cfg
	return &cfg, nil
}

func (f *fakeFetcher) Heartbeat(_ context.Context, _ string, hb HeartbeatRequest) error {
	f.heartbeats = append(f.heartbeats, hb)
	return nil
}

type memStore struct {
	snap    *Snapshot
	saveErr error
}

func (m *memStore) Save(s Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = &s
	return nil
}

func (m *memStore) Load(now time.Time) (*Snapshot, error) {
	if m.snap == nil || now.Sub(m.snap.FetchedAt) > SnapshotTTL {
		return nil, nil
	}
	return m.snap, nil
}

func testConfig() *Config {
	return &Config{
		APIURL:          "http://localhost",
		DisplayID:       "abc123",
		DeviceID:        "device-1",
		SerialNumber:    "SN-001",
		FirmwareVersion: "1.0.0",
	}
}

func newTestRuntime(api Fetcher, store snapshotStore) (*Runtime, *[]display.VisualTree) {
	r := NewRuntime(testConfig(), api, store, &display.Renderer{}, slog.New(slog.DiscardHandler))
	var trees []display.VisualTree
	r.OnUpdate = func(t display.VisualTree) { trees = append(trees, t) }
	return r, &trees
}

func TestRefreshTransitionsToLive(t *testing.T) {
	api := &fakeFetcher{
		pharmacyID: "ph-1",
		cfg:        &models.DisplayConfig{PharmacyName: "Farmacia Centrale", Theme: models.ThemeLight, Version: 3},
	}
	store := &memStore{}
	r, trees := newTestRuntime(api, store)

	r.Refresh(context.Background())

	if r.State() != StateLive {
		t.Fatalf("state = %v, want live", r.State())
	}
	if store.snap == nil || store.snap.Config.Version != 3 {
		t.Errorf("snapshot not persisted: %+v", store.snap)
	}
	if len(*trees) != 1 {
		t.Fatalf("renders = %d", len(*trees))
	}
	tree := (*trees)[0]
	if tree.Offline {
		t.Error("live tree flagged offline")
	}
	if tree.Header.PharmacyName != "Farmacia Centrale" {
		t.Errorf("rendered name = %q", tree.Header.PharmacyName)
	}
}

func TestRefreshFailureKeepsLastSnapshot(t *testing.T) {
	api := &fakeFetcher{
		pharmacyID: "ph-1",
		cfg:        &models.DisplayConfig{PharmacyName: "Farmacia Centrale"},
	}
	r, trees := newTestRuntime(api, &memStore{})

	r.Refresh(context.Background())
	api.fetchErr = errors.New("connection refused")
	r.Refresh(context.Background())

	if r.State() != StateDegraded {
		t.Fatalf("state = %v, want degraded", r.State())
	}
	last := (*trees)[len(*trees)-1]
	if !last.Offline {
		t.Error("degraded tree not flagged offline")
	}
	// The previously fetched content keeps showing.
	if last.Header.PharmacyName != "Farmacia Centrale" {
		t.Errorf("degraded render lost content: name = %q", last.Header.PharmacyName)
	}
}

func TestRecoveryClearsOfflineFlag(t *testing.T) {
	api := &fakeFetcher{
		pharmacyID: "ph-1",
		cfg:        &models.DisplayConfig{PharmacyName: "Farmacia Centrale"},
	}
	r, trees := newTestRuntime(api, &memStore{})

	r.Refresh(context.Background())
	api.fetchErr = errors.New("timeout")
	r.Refresh(context.Background())
	api.fetchErr = nil
	r.Refresh(context.Background())

	if r.State() != StateLive {
		t.Fatalf("state = %v, want live after recovery", r.State())
	}
	if last := (*trees)[len(*trees)-1]; last.Offline {
		t.Error("recovered tree still flagged offline")
	}
}

func TestDegradedBootLoadsPersistedSnapshot(t *testing.T) {
	now := time.Now()
	store := &memStore{snap: &Snapshot{
		Config:    models.DisplayConfig{PharmacyName: "Farmacia Cache"},
		FetchedAt: now.Add(-time.Hour),
	}}
	api := &fakeFetcher{resolveErr: errors.New("network down")}
	r, trees := newTestRuntime(api, store)

	r.Refresh(context.Background())

	if r.State() != StateDegraded {
		t.Fatalf("state = %v", r.State())
	}
	last := (*trees)[len(*trees)-1]
	if last.Header.PharmacyName != "Farmacia Cache" {
		t.Errorf("persisted snapshot not served: name = %q", last.Header.PharmacyName)
	}
	if !last.Offline {
		t.Error("tree not flagged offline")
	}
}

func TestSnapshotFreshnessCeiling(t *testing.T) {
	base := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		age       time.Duration
		wantShown bool
	}{
		{"just inside ceiling", SnapshotTTL - time.Minute, true},
		{"past ceiling", SnapshotTTL + time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeFetcher{resolveErr: errors.New("network down")}
			r, trees := newTestRuntime(api, &memStore{})
			r.now = func() time.Time { return base }
			r.snapshot = &Snapshot{
				Config:    models.DisplayConfig{PharmacyName: "Farmacia Vecchia"},
				FetchedAt: base.Add(-tt.age),
			}

			r.Refresh(context.Background())

			last := (*trees)[len(*trees)-1]
			shown := last.Header.PharmacyName == "Farmacia Vecchia"
			if shown != tt.wantShown {
				t.Errorf("snapshot shown = %v, want %v (age %v)", shown, tt.wantShown, tt.age)
			}
		})
	}
}

func TestStaleResponseDropped(t *testing.T) {
	api := &fakeFetcher{
		pharmacyID: "ph-1",
		cfg:        &models.DisplayConfig{PharmacyName: "Nuova", Version: 2},
	}
	store := &memStore{}
	r, _ := newTestRuntime(api, store)

	applied := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	r.lastApplied = applied
	r.pharmacyID = "ph-1"
	r.now = func() time.Time { return applied.Add(-time.Second) }

	r.Refresh(context.Background())

	if store.snap != nil {
		t.Error("stale response applied over a newer one")
	}
	if !r.lastApplied.Equal(applied) {
		t.Errorf("lastApplied moved backwards to %v", r.lastApplied)
	}
}

func TestHeartbeatPayload(t *testing.T) {
	api := &fakeFetcher{
		pharmacyID: "ph-1",
		cfg:        &models.DisplayConfig{},
	}
	r, _ := newTestRuntime(api, &memStore{})

	r.heartbeat(context.Background())

	if len(api.heartbeats) != 1 {
		t.Fatalf("heartbeats = %d", len(api.heartbeats))
	}
	hb := api.heartbeats[0]
	if hb.SerialNumber != "SN-001" || hb.FirmwareVersion != "1.0.0" || hb.Status != models.DeviceStatusActive {
		t.Errorf("payload = %+v", hb)
	}
}

func TestHeartbeatSkippedWithoutDeviceID(t *testing.T) {
	api := &fakeFetcher{pharmacyID: "ph-1", cfg: &models.DisplayConfig{}}
	cfg := testConfig()
	cfg.DeviceID = ""
	r := NewRuntime(cfg, api, nil, &display.Renderer{}, slog.New(slog.DiscardHandler))

	r.heartbeat(context.Background())

	if len(api.heartbeats) != 0 {
		t.Errorf("heartbeat sent without device id")
	}
}

func TestNotifyConnectivityChangeNeverBlocks(t *testing.T) {
	r, _ := newTestRuntime(&fakeFetcher{cfg: &models.DisplayConfig{}}, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.NotifyConnectivityChange()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyConnectivityChange blocked")
	}
}
