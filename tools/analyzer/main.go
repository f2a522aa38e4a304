// Package main provides a corpus analyzer for archived tuner readings.
// It analyzes reading distribution, parsing coverage, and value format patterns.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "readings.db", "SQLite archive file")
	outputFormat := flag.String("format", "text", "Output format: text, json")
	showTemplates := flag.Bool("templates", false, "Include template analysis (slower)")
	topN := flag.Int("top", 20, "Show top N items in each category")
	varName := flag.String("var", "", "Analyze specific variable only")
	suggest := flag.Bool("suggest", false, "Generate pattern suggestions for a variable (requires -var)")
	minCluster := flag.Int("min-cluster", 3, "Minimum cluster size for suggestions")
	testPattern := flag.String("test", "", "Test a regex pattern against the corpus")

	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Pattern testing mode.
	if *testPattern != "" {
		if *varName == "" {
			fmt.Fprintf(os.Stderr, "Error: -test requires -var\n")
			os.Exit(1)
		}
		matches, total, matchIDs, nonMatchIDs := TestPattern(db, *testPattern, *varName)
		pct := 0.0
		if total > 0 {
			pct = float64(matches) / float64(total) * 100
		}
		fmt.Printf("Pattern: %s\n", *testPattern)
		fmt.Printf("Var: %s\n", *varName)
		fmt.Printf("Result: %d/%d match (%.1f%%)\n\n", matches, total, pct)

		if len(matchIDs) > 0 {
			fmt.Printf("Sample matches: %v\n", matchIDs)
		}
		if len(nonMatchIDs) > 0 {
			fmt.Printf("Sample non-matches: %v\n", nonMatchIDs)
		}
		return
	}

	// Suggestion mode.
	if *suggest {
		if *varName == "" {
			fmt.Fprintf(os.Stderr, "Error: -suggest requires -var\n")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Generating pattern suggestions for var %s...\n", *varName)
		suggestions := SuggestPatterns(db, *varName, *minCluster, *topN)

		if *outputFormat == "json" {
			data, _ := json.MarshalIndent(suggestions, "", "  ")
			fmt.Println(string(data))
		} else {
			PrintSuggestions(suggestions, db)
		}
		return
	}

	report := &AnalysisReport{}

	// Run all analyses.
	fmt.Fprintf(os.Stderr, "Analyzing corpus...\n")

	report.Summary = analyzeSummary(db)
	fmt.Fprintf(os.Stderr, "  - Summary complete\n")

	report.VarDistribution = analyzeVarDistribution(db, *topN)
	fmt.Fprintf(os.Stderr, "  - Variable distribution complete\n")

	report.ParserCoverage = analyzeParserCoverage(db, *topN)
	fmt.Fprintf(os.Stderr, "  - Parser coverage complete\n")

	report.VarParsing = analyzeVarParsing(db, *varName)
	fmt.Fprintf(os.Stderr, "  - Variable parsing complete\n")

	report.ContentPatterns = analyzeContentPatterns(db, *varName, *topN)
	fmt.Fprintf(os.Stderr, "  - Content patterns complete\n")

	report.FieldCoverage = analyzeFieldCoverage(db)
	fmt.Fprintf(os.Stderr, "  - Field coverage complete\n")

	if *showTemplates {
		report.TemplateAnalysis = analyzeTemplates(db, *varName, *topN)
		fmt.Fprintf(os.Stderr, "  - Template analysis complete\n")
	}

	// Output.
	if *outputFormat == "json" {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		printTextReport(report)
	}
}

// AnalysisReport contains all analysis results.
type AnalysisReport struct {
	Summary          SummaryStats         `json:"summary"`
	VarDistribution  []VarCount           `json:"var_distribution"`
	ParserCoverage   []ParserCount        `json:"parser_coverage"`
	VarParsing       []VarParseStats      `json:"var_parsing"`
	ContentPatterns  []VarContentPatterns `json:"content_patterns"`
	FieldCoverage    []FieldCoverageStats `json:"field_coverage"`
	TemplateAnalysis []VarTemplates       `json:"template_analysis,omitempty"`
}

type SummaryStats struct {
	TotalReadings     int     `json:"total_readings"`
	ParsedReadings    int     `json:"parsed_readings"`
	UnparsedReadings  int     `json:"unparsed_readings"`
	ParseRate         float64 `json:"parse_rate"`
	UniqueVars        int     `json:"unique_vars"`
	UniqueParserTypes int     `json:"unique_parser_types"`
	UniqueDevices     int     `json:"unique_devices"`
	TruncatedReadings int     `json:"truncated_readings"`
}

type VarCount struct {
	Var   string  `json:"var"`
	Count int     `json:"count"`
	Pct   float64 `json:"percentage"`
}

type ParserCount struct {
	ParserType string  `json:"parser_type"`
	Count      int     `json:"count"`
	Pct        float64 `json:"percentage"`
}

type VarParseStats struct {
	Var        string   `json:"var"`
	Total      int      `json:"total"`
	Parsed     int      `json:"parsed"`
	Unparsed   int      `json:"unparsed"`
	ParseRate  float64  `json:"parse_rate"`
	TopParsers []string `json:"top_parsers"`
}

type VarContentPatterns struct {
	Var      string         `json:"var"`
	Keywords []KeywordCount `json:"keywords"`
}

type KeywordCount struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Pct     float64 `json:"percentage"`
}

type FieldCoverageStats struct {
	ParserType string       `json:"parser_type"`
	Fields     []FieldCount `json:"fields"`
}

type FieldCount struct {
	Field   string  `json:"field"`
	Present int     `json:"present"`
	Missing int     `json:"missing"`
	Pct     float64 `json:"percentage"`
}

type VarTemplates struct {
	Var             string          `json:"var"`
	TotalReadings   int             `json:"total_readings"`
	UniqueTemplates int             `json:"unique_templates"`
	TopTemplates    []TemplateCount `json:"top_templates"`
}

type TemplateCount struct {
	Template string `json:"template"`
	Count    int    `json:"count"`
	Example  string `json:"example"`
}

func analyzeSummary(db *sql.DB) SummaryStats {
	var stats SummaryStats

	db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&stats.TotalReadings)
	db.QueryRow("SELECT COUNT(*) FROM readings WHERE parser_type != ''").Scan(&stats.ParsedReadings)
	stats.UnparsedReadings = stats.TotalReadings - stats.ParsedReadings
	if stats.TotalReadings > 0 {
		stats.ParseRate = float64(stats.ParsedReadings) / float64(stats.TotalReadings) * 100
	}
	db.QueryRow("SELECT COUNT(DISTINCT var) FROM readings").Scan(&stats.UniqueVars)
	db.QueryRow("SELECT COUNT(DISTINCT parser_type) FROM readings WHERE parser_type != ''").Scan(&stats.UniqueParserTypes)
	db.QueryRow("SELECT COUNT(DISTINCT device_id) FROM readings").Scan(&stats.UniqueDevices)
	db.QueryRow("SELECT COUNT(*) FROM readings WHERE truncated = 1").Scan(&stats.TruncatedReadings)

	return stats
}

func analyzeVarDistribution(db *sql.DB, topN int) []VarCount {
	rows, err := db.Query(`
		SELECT var, COUNT(*) as cnt
		FROM readings
		GROUP BY var
		ORDER BY cnt DESC
		LIMIT ?`, topN)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var total int
	db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&total)

	var results []VarCount
	for rows.Next() {
		var vc VarCount
		rows.Scan(&vc.Var, &vc.Count)
		if total > 0 {
			vc.Pct = float64(vc.Count) / float64(total) * 100
		}
		results = append(results, vc)
	}
	return results
}

func analyzeParserCoverage(db *sql.DB, topN int) []ParserCount {
	rows, err := db.Query(`
		SELECT COALESCE(NULLIF(parser_type, ''), 'unparsed') as ptype, COUNT(*) as cnt
		FROM readings
		GROUP BY ptype
		ORDER BY cnt DESC
		LIMIT ?`, topN)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var total int
	db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&total)

	var results []ParserCount
	for rows.Next() {
		var pc ParserCount
		rows.Scan(&pc.ParserType, &pc.Count)
		if total > 0 {
			pc.Pct = float64(pc.Count) / float64(total) * 100
		}
		results = append(results, pc)
	}
	return results
}

func analyzeVarParsing(db *sql.DB, filterVar string) []VarParseStats {
	query := `
		SELECT
			var,
			COUNT(*) as total,
			SUM(CASE WHEN parser_type != '' THEN 1 ELSE 0 END) as parsed
		FROM readings
	`
	var args []interface{}
	if filterVar != "" {
		query += " WHERE var = ?"
		args = append(args, filterVar)
	}
	query += " GROUP BY var ORDER BY total DESC LIMIT 30"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []VarParseStats
	for rows.Next() {
		var vs VarParseStats
		rows.Scan(&vs.Var, &vs.Total, &vs.Parsed)
		vs.Unparsed = vs.Total - vs.Parsed
		if vs.Total > 0 {
			vs.ParseRate = float64(vs.Parsed) / float64(vs.Total) * 100
		}

		// Get top parsers for this var.
		prows, _ := db.Query(`
			SELECT parser_type, COUNT(*) as cnt
			FROM readings
			WHERE var = ? AND parser_type != ''
			GROUP BY parser_type
			ORDER BY cnt DESC
			LIMIT 3`, vs.Var)
		if prows != nil {
			for prows.Next() {
				var pt string
				var cnt int
				prows.Scan(&pt, &cnt)
				vs.TopParsers = append(vs.TopParsers, fmt.Sprintf("%s(%d)", pt, cnt))
			}
			prows.Close()
		}

		results = append(results, vs)
	}
	return results
}

// Keywords to look for in reading values - these indicate potential data value.
var interestingKeywords = []string{
	// Tuning state.
	"CH=", "LOCK=", "NONE",
	// Signal metrics.
	"SS=", "SNQ=", "SEQ=", "SIG=", "SNR=", "DBG=",
	// Transport throughput.
	"BPS=", "PPS=",
	// ATSC 3.0 signaling.
	"ATSC3", "PLP", "BSID",
	// Legacy modulations.
	"8VSB", "QAM64", "QAM256",
	// Program lineup.
	"ENCRYPTED", "CONTROL",
}

func analyzeContentPatterns(db *sql.DB, filterVar string, topN int) []VarContentPatterns {
	// Get vars to analyze.
	query := "SELECT DISTINCT var FROM readings"
	var args []interface{}
	if filterVar != "" {
		query += " WHERE var = ?"
		args = append(args, filterVar)
	}
	query += " ORDER BY var"

	varRows, err := db.Query(query, args...)
	if err != nil {
		return nil
	}
	defer varRows.Close()

	var vars []string
	for varRows.Next() {
		var v string
		varRows.Scan(&v)
		vars = append(vars, v)
	}

	var results []VarContentPatterns
	for _, v := range vars {
		// Get sample of readings for this var.
		rows, err := db.Query(`
			SELECT raw_value FROM readings
			WHERE var = ?
			LIMIT 1000`, v)
		if err != nil {
			continue
		}

		keywordCounts := make(map[string]int)
		var total int

		for rows.Next() {
			var text string
			rows.Scan(&text)
			total++
			upper := strings.ToUpper(text)

			for _, kw := range interestingKeywords {
				if strings.Contains(upper, kw) {
					keywordCounts[kw]++
				}
			}
		}
		rows.Close()

		if total == 0 {
			continue
		}

		// Sort keywords by count.
		var keywords []KeywordCount
		for kw, cnt := range keywordCounts {
			if cnt > 0 {
				keywords = append(keywords, KeywordCount{
					Keyword: kw,
					Count:   cnt,
					Pct:     float64(cnt) / float64(total) * 100,
				})
			}
		}
		sort.Slice(keywords, func(i, j int) bool {
			return keywords[i].Count > keywords[j].Count
		})
		if len(keywords) > topN {
			keywords = keywords[:topN]
		}

		if len(keywords) > 0 {
			results = append(results, VarContentPatterns{
				Var:      v,
				Keywords: keywords,
			})
		}
	}

	return results
}

func analyzeFieldCoverage(db *sql.DB) []FieldCoverageStats {
	// Get parser types with parsed_json.
	rows, err := db.Query(`
		SELECT DISTINCT parser_type
		FROM readings
		WHERE parser_type != '' AND parsed_json != ''
		ORDER BY parser_type`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var parserTypes []string
	for rows.Next() {
		var pt string
		rows.Scan(&pt)
		parserTypes = append(parserTypes, pt)
	}

	var results []FieldCoverageStats
	for _, pt := range parserTypes {
		// Sample parsed_json for this parser type.
		jrows, err := db.Query(`
			SELECT parsed_json FROM readings
			WHERE parser_type = ? AND parsed_json != ''
			LIMIT 500`, pt)
		if err != nil {
			continue
		}

		fieldPresent := make(map[string]int)
		fieldMissing := make(map[string]int)
		var total int

		for jrows.Next() {
			var jsonStr string
			jrows.Scan(&jsonStr)
			total++

			var data map[string]interface{}
			if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
				continue
			}

			// Track all fields seen.
			for k, v := range data {
				// Skip metadata fields.
				if k == "reading_id" || k == "raw" {
					continue
				}

				isEmpty := false
				switch val := v.(type) {
				case string:
					isEmpty = val == ""
				case float64:
					isEmpty = val == 0
				case []interface{}:
					isEmpty = len(val) == 0
				case nil:
					isEmpty = true
				}

				if isEmpty {
					fieldMissing[k]++
				} else {
					fieldPresent[k]++
				}
			}
		}
		jrows.Close()

		if total == 0 {
			continue
		}

		// Combine present and missing for all fields.
		allFields := make(map[string]bool)
		for f := range fieldPresent {
			allFields[f] = true
		}
		for f := range fieldMissing {
			allFields[f] = true
		}

		var fields []FieldCount
		for f := range allFields {
			present := fieldPresent[f]
			missing := fieldMissing[f]
			fields = append(fields, FieldCount{
				Field:   f,
				Present: present,
				Missing: missing,
				Pct:     float64(present) / float64(total) * 100,
			})
		}
		sort.Slice(fields, func(i, j int) bool {
			return fields[i].Present > fields[j].Present
		})

		results = append(results, FieldCoverageStats{
			ParserType: pt,
			Fields:     fields,
		})
	}

	return results
}

// Template analysis - collapses reading values to format templates so that
// values differing only in numbers cluster together.
var tokenPatterns = []struct {
	Name    string
	Pattern *regexp.Regexp
}{
	{"<FREQ>", regexp.MustCompile(`^\d{8,10}$`)},
	{"<TUNE>", regexp.MustCompile(`^\d{8,10}:[\d,]+$`)},
	{"<DEC>", regexp.MustCompile(`^-?\d{1,4}\.\d{1,2}$`)},
	{"<HEX>", regexp.MustCompile(`^0[xX][0-9A-Fa-f]+$`)},
	{"<NUM>", regexp.MustCompile(`^-?\d+$`)},
	{"<PROG>", regexp.MustCompile(`^\d{1,5}:$`)},
	{"<B64>", regexp.MustCompile(`^[A-Za-z0-9+/]{16,}={0,2}$`)},
	{"<CALLSIGN>", regexp.MustCompile(`^[A-Z][A-Z0-9]{1,5}(-[A-Z0-9]{1,4})?$`)},
}

var literalKeywords = map[string]bool{
	"none": true, "atsc3": true, "8vsb": true, "qam64": true, "qam256": true,
	"auto": true, "(encrypted)": true, "(control)": true,
}

// keyName matches the key half of an hdhomerun key=value token.
var keyName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// modWord matches a modulation word like "atsc3" or "8vsb" (must contain a letter).
var modWord = regexp.MustCompile(`^[0-9]*[a-z][a-z0-9]*$`)

var lowerWord = regexp.MustCompile(`^[a-z]{3,8}$`)

func analyzeTemplates(db *sql.DB, filterVar string, topN int) []VarTemplates {
	// Get vars to analyze.
	query := `SELECT var, COUNT(*) as cnt FROM readings GROUP BY var HAVING cnt >= 10 ORDER BY cnt DESC LIMIT 20`
	var args []interface{}
	if filterVar != "" {
		query = `SELECT var, COUNT(*) as cnt FROM readings WHERE var = ? GROUP BY var`
		args = append(args, filterVar)
	}

	varRows, err := db.Query(query, args...)
	if err != nil {
		return nil
	}
	defer varRows.Close()

	var vars []string
	for varRows.Next() {
		var v string
		var cnt int
		varRows.Scan(&v, &cnt)
		vars = append(vars, v)
	}

	var results []VarTemplates
	for _, v := range vars {
		rows, err := db.Query(`SELECT raw_value FROM readings WHERE var = ? LIMIT 5000`, v)
		if err != nil {
			continue
		}

		templateCounts := make(map[string]int)
		templateExamples := make(map[string]string)
		var total int

		for rows.Next() {
			var text string
			rows.Scan(&text)
			total++

			tmpl := normaliseToTemplate(text)
			templateCounts[tmpl]++
			if _, ok := templateExamples[tmpl]; !ok {
				templateExamples[tmpl] = text
			}
		}
		rows.Close()

		var topTemplates []TemplateCount
		for tmpl, cnt := range templateCounts {
			topTemplates = append(topTemplates, TemplateCount{
				Template: truncate(tmpl, 100),
				Count:    cnt,
				Example:  truncate(templateExamples[tmpl], 200),
			})
		}
		sort.Slice(topTemplates, func(i, j int) bool {
			return topTemplates[i].Count > topTemplates[j].Count
		})
		if len(topTemplates) > topN {
			topTemplates = topTemplates[:topN]
		}

		results = append(results, VarTemplates{
			Var:             v,
			TotalReadings:   total,
			UniqueTemplates: len(templateCounts),
			TopTemplates:    topTemplates,
		})
	}

	return results
}

func normaliseToTemplate(text string) string {
	lines := strings.Split(text, "\n")

	var normalisedLines []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		var normalisedTokens []string

		for _, tok := range tokens {
			normalisedTokens = append(normalisedTokens, classifyToken(tok))
		}

		if len(normalisedTokens) > 0 {
			normalisedLines = append(normalisedLines, strings.Join(normalisedTokens, " "))
		}
	}

	return strings.Join(normalisedLines, " | ")
}

func classifyToken(tok string) string {
	if literalKeywords[tok] {
		return tok
	}

	// key=value tokens keep the key and classify the value, so "ss=82"
	// becomes "ss=<NUM>" and clusters with every other signal strength.
	if key, val, ok := strings.Cut(tok, "="); ok && val != "" && keyName.MatchString(key) {
		return key + "=" + classifyValue(val)
	}

	return classifyValue(tok)
}

func classifyValue(val string) string {
	if literalKeywords[val] {
		return val
	}

	// Composite values like "atsc3:573000000" keep the modulation prefix.
	if pre, rest, ok := strings.Cut(val, ":"); ok && rest != "" && modWord.MatchString(pre) {
		return pre + ":" + classifyValue(rest)
	}

	for _, tp := range tokenPatterns {
		if tp.Pattern.MatchString(val) {
			return tp.Name
		}
	}

	if len(val) <= 2 {
		return val
	}

	if lowerWord.MatchString(val) {
		return val
	}

	return "<OTHER>"
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func printTextReport(report *AnalysisReport) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                 TUNER READING CORPUS ANALYSIS")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	// Summary.
	fmt.Println("SUMMARY")
	fmt.Println("───────")
	s := report.Summary
	fmt.Printf("Total Readings:     %d\n", s.TotalReadings)
	fmt.Printf("Parsed:             %d (%.1f%%)\n", s.ParsedReadings, s.ParseRate)
	fmt.Printf("Unparsed:           %d (%.1f%%)\n", s.UnparsedReadings, 100-s.ParseRate)
	fmt.Printf("Unique Variables:   %d\n", s.UniqueVars)
	fmt.Printf("Unique Parser Types: %d\n", s.UniqueParserTypes)
	fmt.Printf("Unique Devices:     %d\n", s.UniqueDevices)
	fmt.Printf("Truncated Payloads: %d\n", s.TruncatedReadings)
	fmt.Println()

	// Variable distribution.
	fmt.Println("VARIABLE DISTRIBUTION (Top readings by status variable)")
	fmt.Println("─────────────────────")
	fmt.Printf("%-14s %10s %8s\n", "Var", "Count", "Pct")
	for _, vc := range report.VarDistribution {
		name := vc.Var
		if name == "" {
			name = "(empty)"
		}
		fmt.Printf("%-14s %10d %7.1f%%\n", name, vc.Count, vc.Pct)
	}
	fmt.Println()

	// Parser coverage.
	fmt.Println("PARSER COVERAGE (Readings by parser type)")
	fmt.Println("───────────────")
	fmt.Printf("%-20s %10s %8s\n", "Parser", "Count", "Pct")
	for _, pc := range report.ParserCoverage {
		fmt.Printf("%-20s %10d %7.1f%%\n", pc.ParserType, pc.Count, pc.Pct)
	}
	fmt.Println()

	// Variable parsing stats.
	fmt.Println("PARSING BY VARIABLE (Coverage per status variable)")
	fmt.Println("───────────────────")
	fmt.Printf("%-14s %8s %8s %8s %8s  %s\n", "Var", "Total", "Parsed", "Unparsed", "Rate", "Top Parsers")
	for _, vs := range report.VarParsing {
		name := vs.Var
		if name == "" {
			name = "(empty)"
		}
		parsers := strings.Join(vs.TopParsers, ", ")
		fmt.Printf("%-14s %8d %8d %8d %7.1f%%  %s\n", name, vs.Total, vs.Parsed, vs.Unparsed, vs.ParseRate, parsers)
	}
	fmt.Println()

	// Content patterns.
	fmt.Println("CONTENT PATTERNS (Keywords found per variable)")
	fmt.Println("────────────────")
	for _, cp := range report.ContentPatterns {
		if len(cp.Keywords) == 0 {
			continue
		}
		name := cp.Var
		if name == "" {
			name = "(empty)"
		}
		var kwStrs []string
		for _, kw := range cp.Keywords {
			if len(kwStrs) >= 8 {
				break
			}
			kwStrs = append(kwStrs, fmt.Sprintf("%s(%.0f%%)", kw.Keyword, kw.Pct))
		}
		fmt.Printf("%-14s: %s\n", name, strings.Join(kwStrs, ", "))
	}
	fmt.Println()

	// Field coverage.
	fmt.Println("FIELD COVERAGE (Extraction rate per parser)")
	fmt.Println("──────────────")
	for _, fc := range report.FieldCoverage {
		fmt.Printf("\n%s:\n", fc.ParserType)
		for _, f := range fc.Fields {
			bar := strings.Repeat("█", int(f.Pct/5))
			fmt.Printf("  %-20s %5.1f%% %s\n", f.Field, f.Pct, bar)
		}
	}
	fmt.Println()

	// Template analysis.
	if len(report.TemplateAnalysis) > 0 {
		fmt.Println("TEMPLATE ANALYSIS (Value format patterns per variable)")
		fmt.Println("─────────────────")
		for _, vt := range report.TemplateAnalysis {
			name := vt.Var
			if name == "" {
				name = "(empty)"
			}
			fmt.Printf("\n%s: %d readings, %d unique templates\n", name, vt.TotalReadings, vt.UniqueTemplates)
			for i, t := range vt.TopTemplates {
				if i >= 5 {
					break
				}
				fmt.Printf("  [%d] %s\n", t.Count, t.Template)
			}
		}
	}
}
