package app

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
	"quadrelay.dev/app/config"
	"quadrelay.dev/pkg/database"
	"quadrelay.dev/pkg/encoders/bech32encoding"
	"quadrelay.dev/pkg/ingest"
	"quadrelay.dev/pkg/metrics"
	"quadrelay.dev/pkg/negentropy"
	"quadrelay.dev/pkg/ratelimit"
	"quadrelay.dev/pkg/reqmonitor"
	"quadrelay.dev/pkg/reqworker"
	"quadrelay.dev/pkg/writer"
)

// Run wires the event store to the worker pools named by the relay's
// pipeline (reqmonitor -> writer -> ingest/reqworker/negentropy) and starts
// the HTTP/websocket listener. The returned channel closes when ctx is
// cancelled.
func Run(
	ctx context.Context, cfg *config.C, db *database.D,
) (quit chan struct{}) {
	quit = make(chan struct{})
	go func() {
		<-ctx.Done()
		log.I.F("shutting down")
		close(quit)
	}()

	var err error
	var adminKeys [][]byte
	for _, admin := range cfg.Admins {
		if len(admin) == 0 {
			continue
		}
		var pk []byte
		if pk, err = bech32encoding.NpubOrHexToPublicKeyBinary(admin); chk.E(err) {
			continue
		}
		adminKeys = append(adminKeys, pk)
	}

	if skb, e := db.GetOrCreateRelayIdentitySecret(); e != nil {
		log.E.F("failed to ensure relay identity key: %v", e)
	} else if len(skb) == 32 {
		log.I.F("relay identity key ready")
	}

	reg := metrics.New()
	limiter := ratelimit.New(
		ratelimit.Config{
			GlobalRate:  cfg.RateLimitGlobalRate,
			GlobalBurst: cfg.RateLimitGlobalBurst,
			RemoteRate:  cfg.RateLimitRemoteRate,
			RemoteBurst: cfg.RateLimitRemoteBurst,
			RemoteTTL:   cfg.RateLimitRemoteTTL,
		},
	)

	reqMonitorShards := cfg.ReqMonitorShards
	if reqMonitorShards <= 0 {
		reqMonitorShards = runtime.NumCPU()
	}
	monitor := reqmonitor.New(reqMonitorShards, reg)

	w := writer.New(
		db, monitor, writer.Config{
			QueueDepth:  cfg.WriterQueueDepth,
			BatchSize:   cfg.WriterBatchSize,
			BatchWindow: cfg.WriterBatchWindow,
		}, reg,
	)

	ingestWorkers := cfg.IngestWorkers
	if ingestWorkers <= 0 {
		ingestWorkers = runtime.NumCPU()
	}
	ingestPool := ingest.New(ingestWorkers, cfg.IngestQueueDepth, w, limiter, reg)

	reqWorkers := cfg.ReqWorkers
	if reqWorkers <= 0 {
		reqWorkers = runtime.NumCPU()
	}
	reqPool := reqworker.New(reqWorkers, cfg.ReqQueueDepth, db, monitor, reg)

	negPool := negentropy.New(
		cfg.NegentropyWorkers, cfg.NegentropyQueueDepth, db, reg,
		cfg.NegentropyMaxSyncEvents,
	)

	srv := &Server{
		Ctx:        ctx,
		Config:     cfg,
		D:          db,
		Admins:     adminKeys,
		Ingest:     ingestPool,
		ReqWorker:  reqPool,
		ReqMonitor: monitor,
		Negentropy: negPool,
		Writer:     w,
		Metrics:    reg,
		RateLimit:  limiter,
	}
	srv.Routes()

	addr := fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port)
	log.I.F("starting listener on http://%s", addr)
	go func() {
		chk.E(http.ListenAndServe(addr, srv))
	}()
	return
}
