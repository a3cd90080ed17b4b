// Package main is the entry point for the waterworks simulation server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/config"
	"github.com/torrevieja/waterworks/internal/engine"
	"github.com/torrevieja/waterworks/internal/events"
	"github.com/torrevieja/waterworks/internal/network"
	"github.com/torrevieja/waterworks/internal/platform/logger"
	"github.com/torrevieja/waterworks/internal/platform/metrics"
	"github.com/torrevieja/waterworks/internal/platform/tuning"
	"github.com/torrevieja/waterworks/internal/scenario"
)

const defaultConfigPath = "config/waterworks.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the TOML configuration file")
	lowResource := flag.Bool("low-resource", false, "use conservative buffers and client limits")
	flag.Parse()

	log.Println("[WATERWORKS] Initializing water distribution simulation server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing file is only acceptable when nobody asked for it.
		if *configPath == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			log.Println("[WATERWORKS] No config file found, using built-in defaults")
			cfg = config.Defaults()
		} else {
			log.Fatalf("[WATERWORKS] Config error: %v", err)
		}
	}

	appLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("[WATERWORKS] Logger error: %v", err)
	}
	defer appLogger.Sync()

	scn := scenario.Default()
	if cfg.Server.ScenarioPath != "" {
		scn, err = scenario.Load(cfg.Server.ScenarioPath)
		if err != nil {
			appLogger.Fatal("load scenario", zap.Error(err))
		}
	}
	appLogger.Info("scenario loaded",
		zap.String("name", scn.Name),
		zap.Int("pumps", len(scn.Pumps)),
		zap.Int("consumers", len(scn.Consumers)))

	eventLog := events.NewEventLog()

	eng := engine.New(scn, engine.Options{
		TickRate:         cfg.Simulation.TickRate.Duration,
		OverheatRecovery: cfg.Simulation.OverheatRecovery.Duration,
	}, appLogger, eventLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eng.Run(ctx)

	profile := tuning.DefaultProfile()
	if *lowResource {
		profile = tuning.LowResourceProfile()
	}

	hub := network.NewHub(eng, eventLog, profile, appLogger)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx)

	mux := http.NewServeMux()

	network.NewControlHandler(eng, appLogger).RegisterRoutes(mux)
	network.NewHistoryHandler(eventLog, appLogger).RegisterRoutes(mux)

	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})

	if cfg.Simulation.Autostart {
		eng.Start()
	}

	srv := &http.Server{
		Addr:    cfg.Server.BindAddress,
		Handler: mux,
	}

	go func() {
		appLogger.Info("HTTP API & WS server listening", zap.String("addr", cfg.Server.BindAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	log.Println("[WATERWORKS] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	eng.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("shutdown incomplete", zap.Error(err))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards are served from other origins during development
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
