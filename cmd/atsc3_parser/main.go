// Command-line entry point for the ATSC 3.0 signal toolkit.
//
// Note about input formats
// ------------------------
// The parsers in this repo expect a "tuner.Reading" object with at least:
//   - var   (e.g. "status", "plpinfo", "l1detail"...)
//   - value (the raw variable text as the device reported it)
//
// In the real world, you may have any of these inputs:
//  1. Feed wrapper: {"source":{...},"device":{...},"reading":{...}}
//  2. Flat reading: {"var":"status","value":"...", ...}
//  3. Poller logs:  "/tuner0/status ss=100 snq=82 ..." text lines.
//
// This CLI tries to autodetect all three. Use -all to keep readings even if
// no parser matched.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/modcod"
	_ "atsc3_parser/internal/parsers" // register all parsers via init()
	"atsc3_parser/internal/parsers/l1detail"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/report"
	"atsc3_parser/internal/storage"
	"atsc3_parser/internal/tuner"
)

type ExtractOut struct {
	Reading *tuner.Reading `json:"reading"`
	Results []any          `json:"results,omitempty"`
}

type Stats struct {
	Lines        int
	ParsedFeed   int
	ParsedFlat   int
	ParsedText   int
	SkippedNoVar int
	Emitted      int
	Matched      int
	Archived     int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "atsc3_parser - commands:")
	fmt.Fprintln(w, "  decode   - decode a base64 L1 signaling payload")
	fmt.Fprintln(w, "  report   - assemble tuner detail reports from a JSONL capture")
	fmt.Fprintln(w, "  snr      - look up the required SNR for a modulation/code-rate pair")
	fmt.Fprintln(w, "  extract  - parse JSONL readings and output JSON")
	fmt.Fprintln(w, "  history  - query archived samples and L1 captures (ClickHouse)")
	fmt.Fprintln(w, "  debug    - run one reading through every parser with tracing")
	fmt.Fprintln(w, "  parsers  - list registered parsers")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  atsc3_parser decode [-json] [-keep-padding] <base64> (or -input payload.txt)")
	fmt.Fprintln(w, "  atsc3_parser report -input readings.jsonl [-save DIR] [-tuner N]")
	fmt.Fprintln(w, "  atsc3_parser snr <modulation> <coderate>")
	fmt.Fprintln(w, "  atsc3_parser extract -input readings.jsonl [-output out.json] [-pretty] [-all] [-stats] [-archive readings.db]")
	fmt.Fprintln(w, "  atsc3_parser extract -reparse -archive readings.db [-stats]")
	fmt.Fprintln(w, "  atsc3_parser history [-l1 | -stats] [-device ID] [-frequency HZ] [-since T] [-limit N]")
	fmt.Fprintln(w, "  atsc3_parser debug -var plpinfo -value \"bsid=2648 ...\" (or -input readings.jsonl)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input must be JSONL (one JSON object per line) or poller log lines.")
	fmt.Fprintln(w, "  - history needs a reachable ClickHouse server (see the -ch-* flags).")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "snr":
		runSNR(os.Args[2:])
	case "extract":
		runExtract(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "debug":
		runDebug(os.Args[2:])
	case "parsers":
		runParsers(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	inPath := fs.String("input", "", "File holding the base64 payload (default: argument or stdin)")
	asJSON := fs.Bool("json", false, "Output the structured result as JSON")
	keepPadding := fs.Bool("keep-padding", false, "Render trailing padding bits instead of skipping them")
	_ = fs.Parse(args)

	payload := strings.Join(fs.Args(), "")
	if *inPath != "" {
		b, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
			os.Exit(1)
		}
		payload = string(b)
	} else if payload == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		payload = string(b)
	}

	// Captured payloads may carry line breaks; the base64 itself never
	// contains whitespace.
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		fmt.Fprintln(os.Stderr, "No payload given")
		os.Exit(2)
	}

	dec := l1.DecodeWithOptions(payload, l1.Options{KeepPadding: *keepPadding})
	if dec == nil {
		fmt.Fprintln(os.Stderr, "Not a decodable L1 signaling payload")
		os.Exit(1)
	}

	if *asJSON {
		enc, err := json.MarshalIndent(dec, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(enc)
		os.Stdout.Write([]byte("\n"))
		return
	}

	for _, line := range dec.Lines {
		fmt.Println(line)
	}
}

func runSNR(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: atsc3_parser snr <modulation> <coderate>")
		fmt.Fprintln(os.Stderr, "Example: atsc3_parser snr qam256 11/15")
		os.Exit(2)
	}

	mod := modcod.Normalize(args[0])
	cod := args[1]
	snr, ok := modcod.Lookup(mod, cod)
	if !ok {
		fmt.Fprintf(os.Stderr, "No SNR entry for %s %s\n", mod, cod)
		os.Exit(1)
	}

	fmt.Printf("%s %s: Min %.2f dB, Max %.2f dB\n", mod, cod, snr.Min, snr.Max)
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	saveDir := fs.String("save", "", "Directory to save reports into (auto-named)")
	only := fs.Int("tuner", -1, "Only report this tuner index")
	_ = fs.Parse(args)

	in := openInput(*inPath)
	defer in.Close()

	// Latest value of every variable, per device/tuner. Device-scoped
	// readings (version) apply to every tuner of their device, including
	// tuners that appear later in the capture.
	snaps := make(map[string]*tuner.Snapshot)
	var order []string
	var sysReadings []*tuner.Reading

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 60*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rd, _ := decodeToReading([]byte(line))
		if rd == nil {
			continue
		}

		if rd.Tuner < 0 {
			for _, snap := range snaps {
				if rd.DeviceID == "" || rd.DeviceID == snap.DeviceID {
					snap.Apply(rd)
				}
			}
			sysReadings = append(sysReadings, rd)
			continue
		}

		if *only >= 0 && rd.Tuner != *only {
			continue
		}

		key := rd.DeviceID + "/tuner" + itoa(rd.Tuner)
		snap, ok := snaps[key]
		if !ok {
			snap = &tuner.Snapshot{DeviceID: rd.DeviceID, Tuner: rd.Tuner}
			for _, sys := range sysReadings {
				if sys.DeviceID == "" || sys.DeviceID == snap.DeviceID {
					snap.Apply(sys)
				}
			}
			snaps[key] = snap
			order = append(order, key)
		}
		snap.Apply(rd)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	reported := 0
	for _, key := range order {
		snap := snaps[key]
		lines := report.Collect(snap)
		if len(lines) == 0 {
			continue
		}
		reported++

		fmt.Printf("=== %s ===\n", key)
		for _, line := range lines {
			if line == report.HLine {
				fmt.Println(strings.Repeat("-", 40))
				continue
			}
			fmt.Println(line)
		}

		if *saveDir != "" {
			path, err := report.AutoSave(*saveDir, snap, now)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to save report for %s: %v\n", key, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Saved %s\n", path)
		}
	}

	if reported == 0 {
		fmt.Fprintln(os.Stderr, "No tuner with plpinfo found in input")
		os.Exit(1)
	}
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	includeAll := fs.Bool("all", false, "Include readings even if no parser matched")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	archivePath := fs.String("archive", "", "SQLite archive to store parsed readings in")
	reparse := fs.Bool("reparse", false, "Re-run parsers over an existing archive instead of reading input")
	_ = fs.Parse(args)

	// Ensure parsers priority ordering is stable.
	registry.Default().Sort()

	var local *storage.LocalDB
	if *archivePath != "" {
		var err error
		local, err = storage.OpenLocal(*archivePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open archive: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()
	}

	if *reparse {
		if local == nil {
			fmt.Fprintln(os.Stderr, "-reparse needs -archive")
			os.Exit(2)
		}
		runReparse(local, *showStats)
		return
	}

	in := openInput(*inPath)
	defer in.Close()

	scanner := bufio.NewScanner(in)
	// JSON lines can be long; bump buffer (60MB).
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 60*1024*1024)

	out := make([]ExtractOut, 0, 1024)
	st := &Stats{}

	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rd, kind := decodeToReading([]byte(line))
		if rd == nil {
			st.SkippedNoVar++
			continue
		}
		switch kind {
		case "feed":
			st.ParsedFeed++
		case "flat":
			st.ParsedFlat++
		case "text":
			st.ParsedText++
		}

		results := registry.Default().Dispatch(rd)
		if local != nil {
			storeReading(local, rd, results, st)
		}

		if !*includeAll && len(results) == 0 {
			continue
		}
		rany := make([]any, 0, len(results))
		for _, r := range results {
			rany = append(rany, r) // keep concrete types for JSON marshal
		}
		out = append(out, ExtractOut{Reading: rd, Results: rany})
		st.Emitted++
		if len(results) > 0 {
			st.Matched++
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d parsed(feed=%d flat=%d text=%d) skipped(no_var)=%d emitted=%d matched=%d archived=%d\n",
			st.Lines, st.ParsedFeed, st.ParsedFlat, st.ParsedText, st.SkippedNoVar, st.Emitted, st.Matched, st.Archived,
		)
	}
}

func storeReading(local *storage.LocalDB, rd *tuner.Reading, results []registry.Result, st *Stats) {
	p := storage.InsertParams{
		Timestamp: rd.Timestamp,
		DeviceID:  rd.DeviceID,
		Tuner:     rd.Tuner,
		Var:       rd.Var,
		Frequency: int64(rd.Frequency),
		RawValue:  rd.Value,
	}
	if p.Timestamp == "" {
		p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if len(results) > 0 {
		p.ParserType = results[0].Type()
		p.ParsedData = results[0]
		if lr, ok := results[0].(*l1detail.Result); ok {
			p.Truncated = lr.Truncated
		}
	}

	if _, err := local.Insert(p); err != nil {
		fmt.Fprintf(os.Stderr, "Archive insert failed: %v\n", err)
		os.Exit(1)
	}
	st.Archived++
}

// runReparse re-dispatches every archived reading and rewrites its parsed
// result, picking up parser fixes without a fresh capture.
func runReparse(local *storage.LocalDB, showStats bool) {
	const page = 1000

	scanned, updated, failed := 0, 0, 0
	for offset := 0; ; offset += page {
		rows, err := local.Query(storage.QueryParams{Limit: page, Offset: offset, OrderBy: "timestamp"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Archive query failed: %v\n", err)
			os.Exit(1)
		}
		if len(rows) == 0 {
			break
		}

		for i := range rows {
			row := &rows[i]
			scanned++

			rd := &tuner.Reading{
				ID:        tuner.FlexInt64(row.ID),
				Timestamp: row.Timestamp.UTC().Format(time.RFC3339),
				DeviceID:  row.DeviceID,
				Tuner:     row.Tuner,
				Var:       row.Var,
				Value:     row.RawValue,
				Frequency: float64(row.Frequency),
			}
			results := registry.Default().Dispatch(rd)
			if len(results) == 0 {
				continue
			}

			p := storage.UpdateParsedParams{
				ID:         row.ID,
				ParserType: results[0].Type(),
				ParsedData: results[0],
			}
			if lr, ok := results[0].(*l1detail.Result); ok {
				p.Truncated = lr.Truncated
			}
			if err := local.UpdateParsed(p); err != nil {
				fmt.Fprintf(os.Stderr, "Update failed for reading %d: %v\n", row.ID, err)
				failed++
				continue
			}
			updated++
		}

		if len(rows) < page {
			break
		}
	}

	if showStats || failed > 0 {
		fmt.Fprintf(os.Stderr, "reparse: scanned=%d updated=%d failed=%d\n", scanned, updated, failed)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	defaults := storage.DefaultConfig().ClickHouse
	host := fs.String("ch-host", defaults.Host, "ClickHouse host")
	port := fs.Int("ch-port", defaults.Port, "ClickHouse native port")
	database := fs.String("ch-database", defaults.Database, "ClickHouse database")
	user := fs.String("ch-user", defaults.User, "ClickHouse user")
	password := fs.String("ch-password", defaults.Password, "ClickHouse password")

	device := fs.String("device", "", "Filter by device id")
	channel := fs.String("channel", "", "Filter by tuned channel spec")
	frequency := fs.Uint("frequency", 0, "Filter by frequency in Hz")
	lockedOnly := fs.Bool("locked", false, "Only samples where the tuner held a lock")
	since := fs.String("since", "", "Only rows at or after this RFC3339 time")
	until := fs.String("until", "", "Only rows before this RFC3339 time")
	limit := fs.Int("limit", 50, "Max rows")
	showL1 := fs.Bool("l1", false, "Show archived L1 captures instead of samples")
	withLines := fs.Bool("lines", false, "With -l1, print the decoded display lines")
	showStats := fs.Bool("stats", false, "Show archive statistics")
	_ = fs.Parse(args)

	ctx := context.Background()
	ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
		Host:     *host,
		Port:     *port,
		Database: *database,
		User:     *user,
		Password: *password,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ClickHouse connect failed: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	switch {
	case *showStats:
		stats, err := ch.GetStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats query failed: %v\n", err)
			os.Exit(1)
		}
		printArchiveStats(stats)

	case *showL1:
		snapshots, err := ch.L1History(ctx, uint32(*frequency), *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "L1 history query failed: %v\n", err)
			os.Exit(1)
		}
		for i := range snapshots {
			printL1Snapshot(&snapshots[i], *withLines)
		}

	default:
		params := storage.CHSampleQuery{
			DeviceID:   *device,
			Channel:    *channel,
			Frequency:  uint32(*frequency),
			LockedOnly: *lockedOnly,
			Limit:      *limit,
			OrderBy:    "timestamp",
			OrderDesc:  true,
		}
		if *since != "" {
			t, err := time.Parse(time.RFC3339, *since)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid -since (use RFC3339): %v\n", err)
				os.Exit(2)
			}
			params.Since = t
		}
		if *until != "" {
			t, err := time.Parse(time.RFC3339, *until)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid -until (use RFC3339): %v\n", err)
				os.Exit(2)
			}
			params.Until = t
		}

		samples, err := ch.Query(ctx, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sample query failed: %v\n", err)
			os.Exit(1)
		}
		for i := range samples {
			fmt.Println(formatSample(&samples[i]))
		}
	}
}

func formatSample(s *storage.CHSample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s/%d", s.Timestamp.UTC().Format(time.RFC3339), s.DeviceID, s.Tuner)
	if s.Channel != "" {
		fmt.Fprintf(&b, " %s", s.Channel)
	}
	lock := s.Lock
	if lock == "" {
		lock = "none"
	}
	fmt.Fprintf(&b, " lock=%s ss=%d snq=%d seq=%d", lock, s.SignalStrength, s.SignalQuality, s.SymbolQuality)
	if s.SignalDBmV != nil {
		fmt.Fprintf(&b, " %ddBmV", *s.SignalDBmV)
	}
	if s.SNRdB != nil {
		fmt.Fprintf(&b, " %ddB", *s.SNRdB)
	}
	if s.BitrateBPS > 0 {
		fmt.Fprintf(&b, " bps=%d", s.BitrateBPS)
	}
	if s.PacketsPerSec > 0 {
		fmt.Fprintf(&b, " pps=%d", s.PacketsPerSec)
	}
	return b.String()
}

func printL1Snapshot(s *storage.CHL1Snapshot, withLines bool) {
	fmt.Printf("%s %s/%d %d Hz", s.RecordedAt.UTC().Format(time.RFC3339), s.DeviceID, s.Tuner, s.Frequency)
	if s.BSID != 0 {
		fmt.Printf(" bsid=%d", s.BSID)
	}
	lines := strings.Split(s.DecodedLines, "\n")
	if s.DecodedLines == "" {
		lines = nil
	}
	fmt.Printf(" lines=%d", len(lines))
	if s.Truncated {
		fmt.Printf(" truncated")
	}
	fmt.Println()

	if withLines {
		for _, line := range lines {
			fmt.Println("  " + line)
		}
	}
}

func printArchiveStats(stats *storage.CHStats) {
	fmt.Printf("samples: %d (locked %d)\n", stats.TotalSamples, stats.LockedSamples)
	fmt.Printf("l1 snapshots: %d\n", stats.L1Snapshots)

	if len(stats.ByDevice) > 0 {
		fmt.Println("by device:")
		for _, k := range sortedByCount(stats.ByDevice) {
			fmt.Printf("  %-12s %d\n", k, stats.ByDevice[k])
		}
	}
	if len(stats.ByChannel) > 0 {
		fmt.Println("by channel:")
		for _, k := range sortedByCount(stats.ByChannel) {
			fmt.Printf("  %-24s %d\n", k, stats.ByChannel[k])
		}
	}
}

func sortedByCount(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func runParsers(args []string) {
	fs := flag.NewFlagSet("parsers", flag.ExitOnError)
	_ = fs.Parse(args)

	registry.Default().Sort()

	parsers := registry.Default().AllParsers()
	sort.Slice(parsers, func(i, j int) bool {
		if parsers[i].Priority() != parsers[j].Priority() {
			return parsers[i].Priority() < parsers[j].Priority()
		}
		return parsers[i].Name() < parsers[j].Name()
	})

	for _, p := range parsers {
		vars := strings.Join(p.Vars(), ",")
		if vars == "" {
			vars = "(all)"
		}
		fmt.Printf("%-12s priority=%-3d vars=%s\n", p.Name(), p.Priority(), vars)
	}
}

// runDebug feeds a single reading through every registered parser and shows
// why each one matched or refused, using ParseWithTrace where a parser
// supports it.
func runDebug(args []string) {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	varName := fs.String("var", "", "Variable name for an inline reading (with -value)")
	value := fs.String("value", "", "Raw variable text for an inline reading")
	inPath := fs.String("input", "", "Take the first decodable reading from this file (default: stdin)")
	_ = fs.Parse(args)

	registry.Default().Sort()

	var rd *tuner.Reading
	if *value != "" {
		if *varName == "" {
			fmt.Fprintln(os.Stderr, "-value needs -var")
			os.Exit(2)
		}
		rd = &tuner.Reading{Var: *varName, Value: *value}
	} else {
		in := openInput(*inPath)
		defer in.Close()

		scanner := bufio.NewScanner(in)
		buf := make([]byte, 0, 1024*1024)
		scanner.Buffer(buf, 60*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if got, _ := decodeToReading([]byte(line)); got != nil {
				rd = got
				break
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
			os.Exit(1)
		}
		if rd == nil {
			fmt.Fprintln(os.Stderr, "No decodable reading in input")
			os.Exit(1)
		}
	}

	fmt.Printf("reading: var=%s tuner=%d", rd.Var, rd.Tuner)
	if rd.DeviceID != "" {
		fmt.Printf(" device=%s", rd.DeviceID)
	}
	fmt.Println()
	fmt.Println()

	parsers := registry.Default().AllParsers()
	sort.Slice(parsers, func(i, j int) bool {
		if parsers[i].Priority() != parsers[j].Priority() {
			return parsers[i].Priority() < parsers[j].Priority()
		}
		return parsers[i].Name() < parsers[j].Name()
	})

	for _, p := range parsers {
		if vars := p.Vars(); len(vars) > 0 && !containsVar(vars, rd.Var) {
			fmt.Printf("%-12s skipped (handles %s)\n", p.Name(), strings.Join(vars, ","))
			continue
		}

		if tp, ok := p.(registry.Traceable); ok {
			printTrace(tp.ParseWithTrace(rd))
			continue
		}

		if !p.QuickCheck(rd.Value) {
			fmt.Printf("%-12s quick check failed\n", p.Name())
			continue
		}
		if res := p.Parse(rd); res != nil {
			fmt.Printf("%-12s matched (%s)\n", p.Name(), res.Type())
		} else {
			fmt.Printf("%-12s no match\n", p.Name())
		}
	}
}

func printTrace(tr *registry.TraceResult) {
	verdict := "no match"
	if tr.Matched {
		verdict = "matched"
	}
	if tr.QuickCheck != nil && !tr.QuickCheck.Passed {
		verdict = "quick check failed"
		if tr.QuickCheck.Reason != "" {
			verdict += ": " + tr.QuickCheck.Reason
		}
	}
	fmt.Printf("%-12s %s\n", tr.ParserName, verdict)

	for _, f := range tr.Fields {
		if f.Matched {
			fmt.Printf("  %-20s %-10s = %q\n", f.Name, f.Key, f.Value)
		} else {
			fmt.Printf("  %-20s %-10s missing\n", f.Name, f.Key)
		}
	}
}

func containsVar(vars []string, v string) bool {
	for _, s := range vars {
		if s == v {
			return true
		}
	}
	return false
}

// Helper functions.

func openInput(path string) io.ReadCloser {
	if path == "" {
		return os.Stdin
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		os.Exit(1)
	}
	return f
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// decodeToReading autodetects the three input formats. The kind string is
// "feed", "flat", or "text" for the stats counters.
func decodeToReading(b []byte) (*tuner.Reading, string) {
	// 1) Feed wrapper.
	var w tuner.FeedWrapper
	if err := json.Unmarshal(b, &w); err == nil && w.Reading != nil {
		if rd := w.ToReading(); rd != nil && rd.Var != "" {
			return rd, "feed"
		}
	}

	// 2) Flat reading (only accept if it actually carries a variable).
	var rd tuner.Reading
	if err := json.Unmarshal(b, &rd); err == nil {
		if rd.Var == "" && rd.Path != "" {
			if idx, name, ok := tuner.SplitVarPath(rd.Path); ok {
				rd.Tuner = idx
				rd.Var = name
			}
		}
		if rd.Var != "" {
			return &rd, "flat"
		}
	}

	// 3) Poller log line: "/tuner0/status ss=100 snq=82 ...".
	line := strings.TrimSpace(string(b))
	if strings.HasPrefix(line, "/") {
		path, value, found := strings.Cut(line, " ")
		if !found {
			return nil, ""
		}
		idx, name, ok := tuner.SplitVarPath(path)
		if !ok {
			return nil, ""
		}
		return &tuner.Reading{
			Tuner: idx,
			Var:   name,
			Value: strings.TrimSpace(value),
			Path:  path,
		}, "text"
	}

	return nil, ""
}
