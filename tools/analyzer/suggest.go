// Pattern suggestion logic for generating regex candidates from reading clusters.
package main

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PatternSuggestion represents a suggested regex pattern for a reading cluster.
type PatternSuggestion struct {
	ClusterID       int      `json:"cluster_id"`
	ReadingCount    int      `json:"reading_count"`
	Var             string   `json:"var"`
	SuggestedRegex  string   `json:"suggested_regex"`
	NamedGroups     []string `json:"named_groups"`
	Examples        []string `json:"examples"`
	ExampleIDs      []int64  `json:"example_ids"`
	TemplatePattern string   `json:"template_pattern"`
}

// readingInfo holds reading ID and value text for clustering.
type readingInfo struct {
	id   int64
	text string
}

// SuggestPatterns analyzes readings and suggests regex patterns for clusters.
func SuggestPatterns(db *sql.DB, varName string, minClusterSize int, maxSuggestions int) []PatternSuggestion {
	rows, err := db.Query(`SELECT id, raw_value FROM readings WHERE var = ? LIMIT 5000`, varName)
	if err != nil {
		return nil
	}
	defer rows.Close()

	// Group by template.
	clusters := make(map[string][]readingInfo)

	for rows.Next() {
		var id int64
		var text string
		rows.Scan(&id, &text)

		template := normaliseToTemplate(text)
		clusters[template] = append(clusters[template], readingInfo{id, text})
	}

	// Sort clusters by size.
	type clusterInfo struct {
		template string
		readings []readingInfo
	}
	var sortedClusters []clusterInfo
	for tmpl, rds := range clusters {
		if len(rds) >= minClusterSize {
			sortedClusters = append(sortedClusters, clusterInfo{tmpl, rds})
		}
	}
	sort.Slice(sortedClusters, func(i, j int) bool {
		return len(sortedClusters[i].readings) > len(sortedClusters[j].readings)
	})

	if len(sortedClusters) > maxSuggestions {
		sortedClusters = sortedClusters[:maxSuggestions]
	}

	// Generate suggestions for each cluster.
	var suggestions []PatternSuggestion
	for i, cluster := range sortedClusters {
		suggestion := generatePatternSuggestion(cluster.readings, cluster.template, varName, i+1)
		suggestions = append(suggestions, suggestion)
	}

	return suggestions
}

func generatePatternSuggestion(readings []readingInfo, template, varName string, clusterID int) PatternSuggestion {
	suggestion := PatternSuggestion{
		ClusterID:       clusterID,
		ReadingCount:    len(readings),
		Var:             varName,
		TemplatePattern: template,
	}

	// Get examples (up to 3).
	for i, rd := range readings {
		if i >= 3 {
			break
		}
		suggestion.Examples = append(suggestion.Examples, rd.text)
		suggestion.ExampleIDs = append(suggestion.ExampleIDs, rd.id)
	}

	// Generate regex from the template.
	regex, groups := generateRegexFromTemplate(template)
	suggestion.SuggestedRegex = regex
	suggestion.NamedGroups = groups

	return suggestion
}

// classPatterns maps template token classes to regex fragments.
var classPatterns = map[string]string{
	"<FREQ>":     `\d{8,10}`,
	"<TUNE>":     `\d{8,10}:[\d,]+`,
	"<DEC>":      `-?\d{1,4}\.\d{1,2}`,
	"<HEX>":      `0[xX][0-9A-Fa-f]+`,
	"<NUM>":      `-?\d+`,
	"<PROG>":     `\d{1,5}:`,
	"<B64>":      `[A-Za-z0-9+/]+={0,2}`,
	"<CALLSIGN>": `[A-Z][A-Z0-9]{1,5}(?:-[A-Z0-9]{1,4})?`,
	"<OTHER>":    `\S+`,
}

// generateRegexFromTemplate creates a regex pattern from a cluster template.
func generateRegexFromTemplate(template string) (string, []string) {
	templateTokens := strings.Fields(strings.ReplaceAll(template, "|", " | "))

	var regexParts []string
	var namedGroups []string
	groupCounts := make(map[string]int)

	for _, tok := range templateTokens {
		if tok == "|" {
			regexParts = append(regexParts, `\s*`)
			continue
		}

		// key=value tokens capture the whole value under the key name,
		// so "ss=<NUM>" becomes `ss=(?P<ss>-?\d+)`.
		if key, val, ok := strings.Cut(tok, "="); ok && keyName.MatchString(key) && strings.Contains(val, "<") {
			name := uniqueGroupName(groupCounts, key)
			namedGroups = append(namedGroups, name)
			regexParts = append(regexParts, key+"="+fmt.Sprintf(`(?P<%s>%s)`, name, valuePattern(val)), `\s*`)
			continue
		}

		if pat, ok := classPatterns[tok]; ok {
			if base := tokenToGroupName(tok); base != "" {
				name := uniqueGroupName(groupCounts, base)
				namedGroups = append(namedGroups, name)
				regexParts = append(regexParts, fmt.Sprintf(`(?P<%s>%s)`, name, pat))
			} else {
				regexParts = append(regexParts, pat)
			}
		} else {
			// Literal token - escape regex special characters.
			regexParts = append(regexParts, regexp.QuoteMeta(tok))
		}

		regexParts = append(regexParts, `\s*`)
	}

	// Join and clean up the regex.
	regex := strings.Join(regexParts, "")
	// Remove trailing \s*
	regex = strings.TrimSuffix(regex, `\s*`)
	// Collapse multiple \s* into one
	regex = regexp.MustCompile(`(\\s\*)+`).ReplaceAllString(regex, `\s+`)
	// Make whitespace more flexible
	regex = strings.ReplaceAll(regex, `\s+`, `[\s\t]+`)
	// Add start anchor but not end (values may have trailing content)
	regex = `(?s)` + regex

	return regex, namedGroups
}

// valuePattern expands class tokens embedded in a template value, keeping
// literal spans, so "atsc3:<FREQ>" becomes `atsc3:\d{8,10}`.
func valuePattern(val string) string {
	var b strings.Builder
	for {
		start := strings.Index(val, "<")
		if start < 0 {
			b.WriteString(regexp.QuoteMeta(val))
			return b.String()
		}
		end := strings.Index(val[start:], ">")
		if end < 0 {
			b.WriteString(regexp.QuoteMeta(val))
			return b.String()
		}

		class := val[start : start+end+1]
		b.WriteString(regexp.QuoteMeta(val[:start]))
		if pat, ok := classPatterns[class]; ok {
			b.WriteString(pat)
		} else {
			b.WriteString(regexp.QuoteMeta(class))
		}
		val = val[start+end+1:]
	}
}

func uniqueGroupName(counts map[string]int, base string) string {
	counts[base]++
	if counts[base] > 1 {
		return fmt.Sprintf("%s%d", base, counts[base])
	}
	return base
}

func tokenToGroupName(token string) string {
	switch token {
	case "<FREQ>":
		return "freq"
	case "<TUNE>":
		return "channel"
	case "<DEC>":
		return "number"
	case "<PROG>":
		return "program"
	case "<CALLSIGN>":
		return "name"
	default:
		return ""
	}
}

// TestPattern tests a regex pattern against the corpus and returns match statistics.
func TestPattern(db *sql.DB, pattern string, varName string) (matches int, total int, sampleMatches []int64, sampleNonMatches []int64) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, 0, nil, nil
	}

	rows, err := db.Query(`SELECT id, raw_value FROM readings WHERE var = ? LIMIT 2000`, varName)
	if err != nil {
		return 0, 0, nil, nil
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var text string
		rows.Scan(&id, &text)
		total++

		if re.MatchString(text) {
			matches++
			if len(sampleMatches) < 5 {
				sampleMatches = append(sampleMatches, id)
			}
		} else {
			if len(sampleNonMatches) < 5 {
				sampleNonMatches = append(sampleNonMatches, id)
			}
		}
	}

	return matches, total, sampleMatches, sampleNonMatches
}

// PrintSuggestions outputs pattern suggestions in a readable format.
func PrintSuggestions(suggestions []PatternSuggestion, db *sql.DB) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                    PATTERN SUGGESTIONS")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	for _, s := range suggestions {
		fmt.Printf("───────────────────────────────────────────────────────────────\n")
		fmt.Printf("CLUSTER %d: %d readings (Var: %s)\n", s.ClusterID, s.ReadingCount, s.Var)
		fmt.Printf("───────────────────────────────────────────────────────────────\n")
		fmt.Println()

		fmt.Println("Template:")
		fmt.Printf("  %s\n", s.TemplatePattern)
		fmt.Println()

		fmt.Println("Suggested Regex:")
		// Print regex in a more readable format.
		printFormattedRegex(s.SuggestedRegex)
		fmt.Println()

		if len(s.NamedGroups) > 0 {
			fmt.Printf("Capture Groups: %s\n", strings.Join(s.NamedGroups, ", "))
			fmt.Println()
		}

		fmt.Println("Examples:")
		for i, ex := range s.Examples {
			fmt.Printf("  [ID %d]\n", s.ExampleIDs[i])
			printIndentedTrunc(ex, "    ", 300)
			fmt.Println()
		}

		// Test the pattern.
		if db != nil && s.SuggestedRegex != "" {
			matches, total, _, _ := TestPattern(db, s.SuggestedRegex, s.Var)
			if total > 0 {
				fmt.Printf("Test Results: %d/%d readings match (%.1f%%)\n", matches, total, float64(matches)/float64(total)*100)
			}
		}

		fmt.Println()
	}
}

func printFormattedRegex(regex string) {
	// Break long regex into readable chunks.
	if len(regex) <= 80 {
		fmt.Printf("  %s\n", regex)
		return
	}

	// Try to break at logical points.
	parts := strings.Split(regex, `[\s\t]+`)
	var line strings.Builder
	line.WriteString("  ")

	for i, part := range parts {
		if i > 0 {
			if line.Len()+len(part)+10 > 80 {
				fmt.Println(line.String() + `[\s\t]+`)
				line.Reset()
				line.WriteString("    ")
			} else {
				line.WriteString(`[\s\t]+`)
			}
		}
		line.WriteString(part)
	}
	if line.Len() > 2 {
		fmt.Println(line.String())
	}
}

func printIndentedTrunc(text, indent string, maxLen int) {
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		fmt.Printf("%s%s\n", indent, line)
	}
}
