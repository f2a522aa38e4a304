// Package main provides a tool to export the observed channel lineup from the
// PostgreSQL database to CSV format. One row per program, ordered by frequency
// then program number:
// frequency,rf_channel,modulation,program,vchannel,name,encrypted
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"atsc3_parser/internal/storage"
)

// ChannelLineup pairs a channel with its observed program list.
type ChannelLineup struct {
	Channel  storage.Channel
	Programs []storage.Program
}

func main() {
	// PostgreSQL connection flags.
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "atsc3", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	pgDB := flag.String("pg-db", "signal_state", "PostgreSQL database")

	output := flag.String("output", "", "Output CSV file (default: stdout)")
	minObservations := flag.Int("min-obs", 1, "Minimum observation count to include a channel")
	showStats := flag.Bool("stats", false, "Show statistics only, don't export")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	ctx := context.Background()

	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	// Show stats mode.
	if *showStats {
		showLineupStats(ctx, pg)
		return
	}

	// Query the lineup.
	lineups, err := getLineup(ctx, pg, *minObservations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying lineup: %v\n", err)
		os.Exit(1)
	}

	if len(lineups) == 0 {
		fmt.Fprintf(os.Stderr, "No channels found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting lineup for %d channels to CSV\n", len(lineups))
	}

	// Write output.
	var writer *csv.Writer
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		writer = csv.NewWriter(file)
	} else {
		writer = csv.NewWriter(os.Stdout)
	}

	header := []string{"frequency", "rf_channel", "modulation", "program", "vchannel", "name", "encrypted"}
	if err := writer.Write(header); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing header: %v\n", err)
		os.Exit(1)
	}

	var programCount int
	for _, lineup := range lineups {
		c := lineup.Channel
		for _, p := range lineup.Programs {
			row := []string{
				strconv.FormatInt(c.Frequency, 10),
				strconv.Itoa(c.RFChannel),
				c.Modulation,
				strconv.FormatInt(p.Number, 10),
				p.VChannel,
				p.Name,
				strconv.FormatBool(p.Encrypted),
			}

			if err := writer.Write(row); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing row: %v\n", err)
				os.Exit(1)
			}
			programCount++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing CSV: %v\n", err)
		os.Exit(1)
	}

	if *verbose && *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d programs across %d channels to %s\n", programCount, len(lineups), *output)
	}
}

// getLineup retrieves channels meeting the observation threshold along with
// their program lists.
func getLineup(ctx context.Context, pg *storage.PostgresDB, minObservations int) ([]ChannelLineup, error) {
	channels, err := pg.ListChannels(ctx, minObservations)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}

	if len(channels) == 0 {
		return nil, nil
	}

	lineups := make([]ChannelLineup, 0, len(channels))
	for _, c := range channels {
		programs, err := pg.GetChannelPrograms(ctx, c.Frequency)
		if err != nil {
			continue
		}

		// Skip channels with no observed program lineup.
		if len(programs) == 0 {
			continue
		}

		lineups = append(lineups, ChannelLineup{
			Channel:  c,
			Programs: programs,
		})
	}

	return lineups, nil
}

// showLineupStats displays statistics about the channels and programs in the database.
func showLineupStats(ctx context.Context, pg *storage.PostgresDB) {
	pool := pg.Pool()

	var totalChannels int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM channels").Scan(&totalChannels)

	var totalPrograms int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM channel_programs").Scan(&totalPrograms)

	var encrypted int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM channel_programs WHERE encrypted = TRUE").Scan(&encrypted)

	var avgObs float64
	_ = pool.QueryRow(ctx, "SELECT COALESCE(AVG(observation_count), 0) FROM channels").Scan(&avgObs)

	var maxObs, maxRF int
	var maxFreq int64
	_ = pool.QueryRow(ctx, "SELECT frequency, rf_channel, observation_count FROM channels ORDER BY observation_count DESC LIMIT 1").Scan(&maxFreq, &maxRF, &maxObs)

	fmt.Println("Lineup Statistics")
	fmt.Println("─────────────────")
	fmt.Printf("Total channels:      %d\n", totalChannels)
	fmt.Printf("Total programs:      %d\n", totalPrograms)
	fmt.Printf("Encrypted programs:  %d\n", encrypted)
	fmt.Printf("Average observations: %.1f\n", avgObs)
	if maxFreq != 0 {
		fmt.Printf("Most observed:       %d Hz (RF %d, %d observations)\n", maxFreq, maxRF, maxObs)
	}

	// Observation count distribution.
	fmt.Println("\nObservation Count Distribution:")
	rows, err := pool.Query(ctx, `
		SELECT
			CASE
				WHEN observation_count = 1 THEN '1'
				WHEN observation_count <= 5 THEN '2-5'
				WHEN observation_count <= 10 THEN '6-10'
				WHEN observation_count <= 50 THEN '11-50'
				ELSE '50+'
			END as bucket,
			COUNT(*) as cnt
		FROM channels
		GROUP BY bucket
		ORDER BY MIN(observation_count)
	`)
	if err == nil {
		defer rows.Close()
		fmt.Printf("%-15s %10s\n", "Observations", "Count")
		for rows.Next() {
			var bucket string
			var cnt int
			_ = rows.Scan(&bucket, &cnt)
			fmt.Printf("%-15s %10d\n", bucket, cnt)
		}
	}

	// Top 10 channels by program count.
	fmt.Println("\nTop 10 Channels by Program Count:")
	topRows, err := pool.Query(ctx, `
		SELECT c.frequency, c.rf_channel, COALESCE(c.modulation, ''), COUNT(p.number) AS programs, c.observation_count
		FROM channels c
		LEFT JOIN channel_programs p ON p.frequency = c.frequency
		GROUP BY c.frequency, c.rf_channel, c.modulation, c.observation_count
		ORDER BY programs DESC, c.frequency
		LIMIT 10
	`)
	if err == nil {
		defer topRows.Close()
		fmt.Printf("%-12s %-4s %-8s %8s %6s\n", "Frequency", "RF", "Mod", "Programs", "Obs")
		for topRows.Next() {
			var freq int64
			var rf, programs, obs int
			var mod string
			_ = topRows.Scan(&freq, &rf, &mod, &programs, &obs)
			fmt.Printf("%-12d %-4d %-8s %8d %6d\n", freq, rf, mod, programs, obs)
		}
	}
}
