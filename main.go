package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/dwell.report/internal/api"
	"github.com/banshee-data/dwell.report/internal/config"
	"github.com/banshee-data/dwell.report/internal/db"
	"github.com/banshee-data/dwell.report/internal/detector"
	"github.com/banshee-data/dwell.report/internal/timeutil"
	"github.com/banshee-data/dwell.report/internal/vision"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address for the HTTP API")
	udpAddr       = flag.String("udp", ":9301", "Listen address for detector frames")
	dbFile        = flag.String("db", "dwell.db", "Path to the sqlite database")
	configPath    = flag.String("config", "", "Path to a tuning JSON file (defaults applied for missing fields)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
	devMode       = flag.Bool("dev", false, "Replay fixtures instead of listening for a live detector")
	fixtures      = flag.String("fixtures", "fixtures/evening.ndjson", "NDJSON fixture file for dev mode")
	replaySpeed   = flag.Float64("replay-speed", 0, "Fixture pacing: 1 is real time, 0 is as fast as possible")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Sessions left open by an unclean shutdown cannot be trusted.
	if n, err := database.CloseStaleSessions(time.Now()); err != nil {
		log.Fatalf("Failed to close stale sessions: %v", err)
	} else if n > 0 {
		log.Printf("Closed %d stale sessions from previous run", n)
	}

	engine, err := vision.NewEngine(tuning.ToEngineConfig(), timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Invalid engine config: %v", err)
	}
	engine.AddSink(db.NewRecorder(database))

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic work: dwell escalation ticks and occupancy snapshots.
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
		log.Print("engine routine terminated")
	}()

	// Frame ingestion: live UDP detector or fixture replay in dev mode.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if *devMode {
			replayer := detector.NewReplayer(engine.ProcessFrame)
			replayer.Speed = *replaySpeed
			n, err := replayer.ReplayFile(ctx, *fixtures)
			if err != nil && err != context.Canceled {
				log.Printf("fixture replay failed: %v", err)
			}
			log.Printf("replayed %d frames from %s", n, *fixtures)
			return
		}

		listener := detector.NewUDPListener(*udpAddr, engine.ProcessFrame)
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("detector listener failed: %v", err)
		}
		log.Print("ingestion routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		database.AttachAdminRoutes(mux)

		apiMux := api.NewServer(engine, database, tuning).ServeMux()
		mux.Handle("/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// Clean stop: force-close open sessions and flush a final snapshot
	// before the database closes.
	engine.Close()
	log.Printf("Graceful shutdown complete")
}
