// signal-feed consumes HDHomeRun tuner readings from a NATS feed, keeps the
// live tuner/channel state, and archives telemetry to ClickHouse/PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"atsc3_parser/internal/feed"
	_ "atsc3_parser/internal/parsers" // register all parsers via init()
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/state"
	"atsc3_parser/internal/storage"
)

// Config is the daemon configuration. The YAML file unmarshals over the
// defaults, so a partial file only overrides the keys it names; flags
// override the file.
type Config struct {
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
		Queue   string `yaml:"queue"`
	} `yaml:"nats"`

	// Connection settings for -store. Field names double as YAML keys.
	ClickHouse storage.ClickHouseConfig `yaml:"clickhouse"`
	Postgres   storage.PostgresConfig   `yaml:"postgres"`

	State   string `yaml:"state"`   // SQLite state database path.
	Archive string `yaml:"archive"` // SQLite raw-reading archive path.
	Metrics string `yaml:"metrics"` // Prometheus listen address.
}

func defaultConfig() Config {
	var cfg Config

	fcfg := feed.DefaultConfig()
	cfg.NATS.URL = fcfg.URL
	cfg.NATS.Subject = fcfg.Subject

	scfg := storage.DefaultConfig()
	cfg.ClickHouse = scfg.ClickHouse
	cfg.Postgres = scfg.Postgres

	cfg.State = "signal-state.db"
	cfg.Metrics = ":9108"

	return cfg
}

func loadConfig(filename string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	natsURL := flag.String("nats-url", "", "NATS server URL")
	subject := flag.String("subject", "", "NATS subject to subscribe to")
	queue := flag.String("queue", "", "NATS queue group (empty = plain subscribe)")
	statePath := flag.String("state", "", "SQLite state database path (\":memory:\" = no file)")
	archivePath := flag.String("archive", "", "SQLite raw-reading archive path (empty = disabled)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (\"off\" = disabled)")
	store := flag.Bool("store", false, "Sync telemetry to ClickHouse/PostgreSQL")
	batch := flag.Int("batch", 0, "Sample batch size")
	flag.Parse()

	cfg := defaultConfig()
	if *cfgPath != "" {
		var err error
		cfg, err = loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	// Flags override the file.
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}
	if *subject != "" {
		cfg.NATS.Subject = *subject
	}
	if *queue != "" {
		cfg.NATS.Queue = *queue
	}
	if *statePath != "" {
		cfg.State = *statePath
	}
	if *archivePath != "" {
		cfg.Archive = *archivePath
	}
	if *metricsAddr != "" {
		cfg.Metrics = *metricsAddr
	}
	if cfg.Metrics == "off" {
		cfg.Metrics = ""
	}

	fcfg := feed.DefaultConfig()
	fcfg.URL = cfg.NATS.URL
	fcfg.Subject = cfg.NATS.Subject
	fcfg.Queue = cfg.NATS.Queue
	if *batch > 0 {
		fcfg.BatchSize = *batch
	}

	registry.Default().Sort()

	tracker, err := state.NewTracker(cfg.State)
	if err != nil {
		log.Fatalf("state tracker: %v", err)
	}
	defer tracker.Close()

	var local *storage.LocalDB
	if cfg.Archive != "" {
		local, err = storage.OpenLocal(cfg.Archive)
		if err != nil {
			log.Fatalf("reading archive: %v", err)
		}
		defer local.Close()
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *storage.DB
	if *store {
		db, err = storage.Open(ctx, storage.Config{
			ClickHouse: cfg.ClickHouse,
			Postgres:   cfg.Postgres,
		})
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		defer db.Close()

		if err := db.CreateSchemas(ctx); err != nil {
			log.Fatalf("storage schema: %v", err)
		}
	}

	f := feed.New(fcfg, registry.Default(), tracker, db, local, feed.NewMetrics())

	// Feed consumer goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.Run(ctx); err != nil {
			log.Fatalf("feed: %v", err)
		}
		log.Print("feed routine terminated")
	}()

	// Metrics server goroutine.
	if cfg.Metrics != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			server := &http.Server{
				Addr:    cfg.Metrics,
				Handler: mux,
			}

			// Start server in a goroutine so it doesn't block
			go func() {
				log.Printf("metrics listening on %s", cfg.Metrics)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start metrics server: %v", err)
				}
			}()

			// Wait for context cancellation to shut down server
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics server shutdown error: %v", err)
			}
		}()
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
