// Package main provides the signal-api server for HDHomeRun tuner telemetry.
//
// This is a standalone REST API server that exposes the live tuner and channel
// state maintained by the feed consumer, plus optional historical queries
// against ClickHouse. It's designed to back dashboards and channel-scan
// tooling that need current lock status, per-PLP SNR margins, and decoded
// L1 signaling without talking to the tuners directly.
//
// Usage:
//
//	signal-api [options]
//
// Options:
//
//	-state PATH         SQLite state database (default: signal-state.db, env: SIGNAL_STATE_DB)
//	-history            Enable /history endpoints backed by ClickHouse
//	-ch-host HOST       ClickHouse host (default: localhost, env: CLICKHOUSE_HOST)
//	-ch-port PORT       ClickHouse port (default: 9000, env: CLICKHOUSE_PORT)
//	-ch-database DB     ClickHouse database (default: atsc3, env: CLICKHOUSE_DATABASE)
//	-ch-user USER       ClickHouse user (default: default, env: CLICKHOUSE_USER)
//	-ch-password PASS   ClickHouse password (default: empty, env: CLICKHOUSE_PASSWORD)
//	-port N             HTTP port (default: 8081)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/stats
//	    Tracker statistics (devices, tuners, channels, programs seen).
//
//	GET /api/v1/devices
//	    List known devices with their current tuner states.
//
//	GET /api/v1/devices/{device_id}
//	    Get a single device by id.
//
//	GET /api/v1/tuners?active=5m
//	    List tuner states, optionally only those updated within a window.
//
//	GET /api/v1/tuners/{device_id}/{tuner}
//	    Get one tuner's current state with per-PLP SNR thresholds.
//
//	GET /api/v1/channels
//	    List observed RF channels.
//
//	GET /api/v1/channels/{frequency}
//	    Get one channel by center frequency in Hz.
//
//	GET /api/v1/channels/{frequency}/l1
//	    Get the decoded L1 signaling capture for a channel.
//
//	GET /api/v1/programs/{name}/channels
//	    List channels that carry a program (partial name match).
//
//	GET /api/v1/snr?modulation=256qam&coderate=11/15
//	    Look up the SNR threshold range for a modulation/code rate pair.
//
//	GET /api/v1/history/samples
//	    Query archived signal samples (requires -history).
//
//	GET /api/v1/history/l1/{frequency}
//	    L1 snapshot history for a frequency, 0 for all (requires -history).
//
//	GET /api/v1/history/stats
//	    Archive row counts by device and channel (requires -history).
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"atsc3_parser/internal/api"
	"atsc3_parser/internal/state"
	"atsc3_parser/internal/storage"
)

func main() {
	// State database flag.
	statePath := flag.String("state", envOrDefault("SIGNAL_STATE_DB", "signal-state.db"), "SQLite state database path")

	// ClickHouse connection flags.
	history := flag.Bool("history", false, "Enable /history endpoints backed by ClickHouse")
	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "atsc3"), "ClickHouse database")

	// API server flags.
	port := flag.Int("port", 8081, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	ctx := context.Background()

	// Open the tracker state database.
	tracker, err := state.NewTracker(*statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state database: %v\n", err)
		os.Exit(1)
	}
	defer tracker.Close()

	// Open ClickHouse when history endpoints are requested.
	var ch *storage.ClickHouseDB
	if *history {
		ch, err = storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: *chDB,
			User:     *chUser,
			Password: *chPassword,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
			os.Exit(1)
		}
		defer ch.Close()
	}

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	// Create and run server.
	server := api.NewSignalServer(tracker, ch, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
