// Command iamd runs the IAM server: it loads configuration from the
// environment, selects a storage backend, and serves the REST API with
// graceful shutdown: over TLS when both a certificate and a key are
// configured, over plain HTTP otherwise.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"iamcore/internal/authproto"
	"iamcore/internal/config"
	"iamcore/internal/events"
	"iamcore/internal/httpapi"
	"iamcore/internal/obs"
	"iamcore/internal/store"
	"iamcore/internal/store/memstore"
	"iamcore/internal/store/pg"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("IAM_COMMIT"))

	cfg, err := config.Load("IAM")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var st store.Store
	if cfg.PGDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgStore, err := pg.Open(ctx, cfg.PGDSN)
		cancel()
		if err != nil {
			log.Fatalf("open postgres store: %v", err)
		}
		defer pgStore.Close()
		st = pgStore
		log.Println("using postgres store")
	} else {
		mem := memstore.New()
		defer mem.Close()
		st = mem
		log.Println("using in-memory store")
	}

	bc := events.NewBroadcaster()

	authCfg := authproto.Config{HeaderPrefix: cfg.HeaderPrefix, Host: cfg.Host}
	api := httpapi.New(st, authCfg, cfg.SessionTTL, bc, version)

	addr := ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting iamd %s on %s (host=%s)", version, addr, cfg.Host)

	go func() {
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Println("stopped")
}
