package kiosk

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/farmadisplay/internal/display"
	"github.com/example/farmadisplay/internal/models"
)

// State is the runtime's connectivity state.
type State int

const (
	// StateBooting is the initial state before the first fetch completes.
	StateBooting State = iota
	// StateLive means the last refresh succeeded.
	StateLive
	// StateDegraded means the last refresh failed; the display keeps
	// showing the cached snapshot with an offline indicator.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	default:
		return "booting"
	}
}

// clockTick bounds how stale the header clock can get between refreshes.
const clockTick = time.Minute

type snapshotStore interface {
	Save(Snapshot) error
	Load(now time.Time) (*Snapshot, error)
}

// Runtime drives one display session: periodic refresh, snapshot caching,
// heartbeat and re-rendering. It is single-goroutine; the refresh and
// heartbeat timers are serviced from the same loop and touch disjoint state.
type Runtime struct {
	cfg      *Config
	api      Fetcher
	store    snapshotStore
	renderer *display.Renderer
	log      *slog.Logger

	// OnUpdate receives every rendered tree; the agent binary publishes it
	// to the attached browser.
	OnUpdate func(display.VisualTree)

	now func() time.Time

	state        State
	pharmacyID   string
	snapshot     *Snapshot
	lastApplied  time.Time
	connectivity chan struct{}
}

// NewRuntime wires a runtime together. store may be nil (no persistence).
func NewRuntime(cfg *Config, api Fetcher, store snapshotStore, renderer *display.Renderer, log *slog.Logger) *Runtime {
	return &Runtime{
		cfg:          cfg,
		api:          api,
		store:        store,
		renderer:     renderer,
		log:          log,
		now:          time.Now,
		state:        StateBooting,
		pharmacyID:   cfg.PharmacyID,
		connectivity: make(chan struct{}, 1),
	}
}

// State returns the current connectivity state.
func (r *Runtime) State() State {
	return r.state
}

// NotifyConnectivityChange requests an immediate out-of-cycle refresh, used
// when the network interface reports a link change. Never blocks.
func (r *Runtime) NotifyConnectivityChange() {
	select {
	case r.connectivity <- struct{}{}:
	default:
	}
}

// Run executes the session loop until the context is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	r.Refresh(ctx)
	r.heartbeat(ctx)

	refresh := time.NewTicker(r.cfg.RefreshInterval())
	defer refresh.Stop()
	heartbeat := time.NewTicker(r.cfg.HeartbeatInterval())
	defer heartbeat.Stop()
	clock := time.NewTicker(clockTick)
	defer clock.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			r.Refresh(ctx)
		case <-r.connectivity:
			r.log.Info("connectivity change, refreshing now")
			r.Refresh(ctx)
		case <-heartbeat.C:
			r.heartbeat(ctx)
		case <-clock.C:
			r.render(ctx)
		}
	}
}

// Refresh fetches the configuration once and applies the result. Failures
// transition to degraded; the cadence never backs off because the kiosk
// favors availability over protecting the server.
func (r *Runtime) Refresh(ctx context.Context) {
	issued := r.now()

	fetchCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if r.pharmacyID == "" {
		id, err := r.api.ResolveDisplay(fetchCtx, r.cfg.DisplayID)
		if err != nil {
			r.degrade(ctx, "resolve display id", err)
			return
		}
		r.pharmacyID = id
	}

	cfg, err := r.api.FetchConfig(fetchCtx, r.pharmacyID)
	if err != nil {
		r.degrade(ctx, "fetch config", err)
		return
	}

	// A response belonging to an older request than the one last applied
	// is stale; drop it.
	if issued.Before(r.lastApplied) {
		return
	}
	r.lastApplied = issued

	snap := Snapshot{Config: *cfg, FetchedAt: issued}
	r.snapshot = &snap
	if r.store != nil {
		if err := r.store.Save(snap); err != nil {
			r.log.Warn("persist snapshot", "error", err)
		}
	}

	if r.state != StateLive {
		r.log.Info("refresh succeeded", "state", StateLive.String(), "version", cfg.Version)
	}
	r.state = StateLive
	r.render(ctx)
}

func (r *Runtime) degrade(ctx context.Context, op string, err error) {
	if r.state != StateDegraded {
		r.log.Warn("entering degraded state", "op", op, "error", err)
	}
	r.state = StateDegraded

	if r.snapshot == nil && r.store != nil {
		snap, loadErr := r.store.Load(r.now())
		if loadErr != nil {
			r.log.Warn("load cached snapshot", "error", loadErr)
		} else if snap != nil {
			r.snapshot = snap
			r.log.Info("serving cached snapshot", "fetched_at", snap.FetchedAt)
		}
	}

	r.render(ctx)
}

// render feeds the current snapshot through the display renderer. A snapshot
// past its freshness ceiling is treated as absent and renders the empty
// state instead of arbitrarily old content.
func (r *Runtime) render(ctx context.Context) {
	if r.OnUpdate == nil {
		return
	}

	now := r.now()
	cfg := display.EffectiveConfig{Theme: models.ThemeLight}
	if r.snapshot != nil && now.Sub(r.snapshot.FetchedAt) <= SnapshotTTL {
		cfg = display.FromModel(r.snapshot.Config)
	}

	tree := r.renderer.Render(ctx, cfg, now, display.ViewportKiosk)
	tree.Offline = r.state == StateDegraded
	r.OnUpdate(tree)
}

// heartbeat reports liveness; failures are logged and retried on the next
// tick, never surfaced to the viewer.
func (r *Runtime) heartbeat(ctx context.Context) {
	if r.cfg.DeviceID == "" {
		return
	}

	hbCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	err := r.api.Heartbeat(hbCtx, r.cfg.DeviceID, HeartbeatRequest{
		SerialNumber:    r.cfg.SerialNumber,
		Status:          models.DeviceStatusActive,
		FirmwareVersion: r.cfg.FirmwareVersion,
	})
	if err != nil {
		r.log.Warn("heartbeat failed", "error", err)
	}
}
