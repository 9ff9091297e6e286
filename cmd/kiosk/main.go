package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/example/farmadisplay/internal/display"
	"github.com/example/farmadisplay/internal/kiosk"
	"github.com/example/farmadisplay/internal/lookup"
)

// version tags the asset cache directory; bump it to invalidate cached assets
// on upgrade.
const version = "1.0.0"

const lookupTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "kiosk.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := kiosk.LoadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	store, err := kiosk.OpenSnapshotStore(cfg.SnapshotDBPath)
	if err != nil {
		log.Error("open snapshot store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	renderer := &display.Renderer{Lookup: lookup.NewClient(cfg.LookupURL, lookupTimeout)}
	runtime := kiosk.NewRuntime(cfg, kiosk.NewAPIClient(cfg.APIURL), store, renderer, log)

	var mu sync.RWMutex
	var latest *display.VisualTree
	runtime.OnUpdate = func(tree display.VisualTree) {
		mu.Lock()
		latest = &tree
		mu.Unlock()
	}

	proxy, err := kiosk.NewCacheProxy(cfg.APIURL, cfg.AssetCacheDir, version, log)
	if err != nil {
		log.Error("init cache proxy", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tree", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		tree := latest
		mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if tree == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"state": runtime.State().String()})
			return
		}
		json.NewEncoder(w).Encode(tree)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runtime.State().String()))
	})
	mux.Handle("/", proxy)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Info("local endpoint listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("local endpoint failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("kiosk agent starting",
		"display_id", cfg.DisplayID,
		"refresh_interval", cfg.RefreshInterval(),
		"heartbeat_interval", cfg.HeartbeatInterval())

	if err := runtime.Run(ctx); err != nil && err != context.Canceled {
		log.Error("runtime stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
