// Command quadrelayd runs the relay daemon: it loads configuration, opens
// the event store, wires the worker pools and ACL policy, and serves
// websocket and HTTP traffic until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/profile"
	_ "go.uber.org/automaxprocs"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/app"
	"quadrelay.dev/app/config"
	"quadrelay.dev/pkg/acl"
	"quadrelay.dev/pkg/database"
	"quadrelay.dev/pkg/version"
)

func main() {
	var err error
	var cfg *config.C
	if cfg, err = config.New(); chk.T(err) {
	}
	log.I.F("starting %s %s", cfg.AppName, version.V)
	if prof := startProfile(cfg.Pprof, cfg.PprofPath); prof != nil {
		defer prof.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var db *database.D
	if db, err = database.New(ctx, cancel, cfg.DataDir, cfg.DBLogLevel); chk.E(err) {
		os.Exit(1)
	}
	acl.Registry.Active.Store(cfg.ACLMode)
	if err = acl.Registry.Configure(cfg, db, ctx); chk.E(err) {
		os.Exit(1)
	}
	acl.Registry.Syncer()

	healthSrv := startHealthServer(ctx, cfg)

	quit := app.Run(ctx, cfg, db)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case <-sigs:
		fmt.Printf("\r")
	case <-quit:
	}
	cancel()
	chk.E(db.Close())
	if healthSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
		_ = healthSrv.Shutdown(shutdownCtx)
		cancelShutdown()
	}
}

// interruptible is the subset of profile.Profile startProfile needs.
type interruptible interface{ Stop() }

func startProfile(mode, path string) interruptible {
	var pmode func(*profile.Profile)
	switch mode {
	case "cpu":
		pmode = profile.CPUProfile
	case "memory":
		pmode = profile.MemProfile
	case "allocation":
		pmode = profile.MemProfileAllocs
	default:
		return nil
	}
	if path != "" {
		return profile.Start(pmode, profile.ProfilePath(path))
	}
	return profile.Start(pmode)
}

func startHealthServer(ctx context.Context, cfg *config.C) *http.Server {
	if cfg.HealthPort <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.EnableShutdown {
		mux.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("shutting down"))
			log.I.F("shutdown requested via /shutdown; sending SIGINT to self")
			go func() {
				p, _ := os.FindProcess(os.Getpid())
				_ = p.Signal(os.Interrupt)
			}()
		})
	}
	srv := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Listen, cfg.HealthPort), Handler: mux}
	go func() {
		log.I.F("health check server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.E.F("health server error: %v", err)
		}
	}()
	return srv
}
