// Package registry provides a parser registry for dispatching tuner status
// variable readings to appropriate parsers.
package registry

import (
	"sort"
	"sync"

	"atsc3_parser/internal/tuner"
)

// Result is the common interface for all parse results.
type Result interface {
	Type() string     // e.g., "status", "plpinfo", "l1"
	ReadingID() int64 // The original reading ID
}

// Parser is implemented by each variable parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Vars returns which status variables this parser handles.
	// Empty slice means "all variables" (content-based parser).
	Vars() []string

	// QuickCheck performs a fast string check before expensive parsing.
	// Returns true if the value MIGHT be parseable (false = definitely skip).
	// This should use strings.Contains/HasPrefix, NOT regex.
	QuickCheck(value string) bool

	// Priority determines order when multiple parsers match the same variable.
	// Lower number = checked first. Cheaper checks should have lower priority.
	Priority() int

	// Parse attempts to parse the reading, returns nil if not applicable.
	Parse(r *tuner.Reading) Result
}

// Registry holds all registered parsers organised for efficient dispatch.
type Registry struct {
	mu sync.RWMutex

	// byVar maps variable names to parser slices, sorted by Priority (ascending)
	byVar map[string][]Parser

	// global holds parsers that check all readings (content-based)
	global []Parser

	// catchAll holds parsers that run only when nothing else matched
	catchAll []Parser

	// sorted tracks whether parsers have been sorted
	sorted bool
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byVar: make(map[string][]Parser),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// RegisterCatchAll adds a catch-all parser that runs when nothing else matches.
func RegisterCatchAll(p Parser) {
	defaultRegistry.RegisterCatchAll(p)
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vars := p.Vars()
	if len(vars) == 0 {
		// Content-based parser - checks all readings
		r.global = append(r.global, p)
	} else {
		for _, v := range vars {
			r.byVar[v] = append(r.byVar[v], p)
		}
	}
	r.sorted = false
}

// RegisterCatchAll adds a catch-all parser.
func (r *Registry) RegisterCatchAll(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchAll = append(r.catchAll, p)
	r.sorted = false
}

// Sort sorts all parser slices by priority. Call before dispatching.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sorted {
		return
	}

	for v := range r.byVar {
		parsers := r.byVar[v]
		sort.Slice(parsers, func(i, j int) bool {
			return parsers[i].Priority() < parsers[j].Priority()
		})
	}

	sort.Slice(r.global, func(i, j int) bool {
		return r.global[i].Priority() < r.global[j].Priority()
	})

	sort.Slice(r.catchAll, func(i, j int) bool {
		return r.catchAll[i].Priority() < r.catchAll[j].Priority()
	})

	r.sorted = true
}

// Dispatch routes a reading to appropriate parsers and returns all results.
// Multiple parsers can match the same reading.
// Note: Sort() should be called before Dispatch() for optimal performance.
// If Sort() has not been called, parsers will be in registration order.
func (r *Registry) Dispatch(rd *tuner.Reading) []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []Result

	// 1. Try variable-specific parsers first (most efficient path)
	if parsers, ok := r.byVar[rd.Var]; ok {
		for _, p := range parsers {
			// Quick check before expensive parse
			if !p.QuickCheck(rd.Value) {
				continue
			}
			if result := p.Parse(rd); result != nil {
				results = append(results, result)
			}
		}
	}

	// 2. Try global (content-based) parsers
	for _, p := range r.global {
		if !p.QuickCheck(rd.Value) {
			continue
		}
		if result := p.Parse(rd); result != nil {
			results = append(results, result)
		}
	}

	// 3. If nothing matched, try catch-all parsers
	if len(results) == 0 && len(r.catchAll) > 0 {
		for _, p := range r.catchAll {
			if result := p.Parse(rd); result != nil {
				results = append(results, result)
			}
		}
	}

	return results
}

// DispatchFirst returns only the first successful parse result.
// Useful when you only need one result per reading.
func (r *Registry) DispatchFirst(rd *tuner.Reading) Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Try variable-specific parsers
	if parsers, ok := r.byVar[rd.Var]; ok {
		for _, p := range parsers {
			if !p.QuickCheck(rd.Value) {
				continue
			}
			if result := p.Parse(rd); result != nil {
				return result
			}
		}
	}

	// Try global parsers
	for _, p := range r.global {
		if !p.QuickCheck(rd.Value) {
			continue
		}
		if result := p.Parse(rd); result != nil {
			return result
		}
	}

	// Try catch-all
	for _, p := range r.catchAll {
		if result := p.Parse(rd); result != nil {
			return result
		}
	}

	return nil
}

// RegisteredVars returns all variable names that have parsers registered.
func (r *Registry) RegisteredVars() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vars := make([]string, 0, len(r.byVar))
	for v := range r.byVar {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// ParserCount returns the total number of unique registered parsers.
// Parsers registered for multiple variables are only counted once.
func (r *Registry) ParserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Use a map to deduplicate parsers (some may be registered for multiple variables).
	seen := make(map[string]bool)

	for _, p := range r.global {
		seen[p.Name()] = true
	}
	for _, parsers := range r.byVar {
		for _, p := range parsers {
			seen[p.Name()] = true
		}
	}
	for _, p := range r.catchAll {
		seen[p.Name()] = true
	}

	return len(seen)
}

// AllParsers returns all registered parsers (global, variable-specific, and
// catch-all). This is useful for debugging and listing available parsers.
func (r *Registry) AllParsers() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Use a map to deduplicate parsers (some may be registered for multiple variables).
	seen := make(map[string]bool)
	var result []Parser

	// Add global parsers.
	for _, p := range r.global {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			result = append(result, p)
		}
	}

	// Add variable-specific parsers.
	for _, parsers := range r.byVar {
		for _, p := range parsers {
			if !seen[p.Name()] {
				seen[p.Name()] = true
				result = append(result, p)
			}
		}
	}

	// Add catch-all parsers.
	for _, p := range r.catchAll {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			result = append(result, p)
		}
	}

	return result
}
