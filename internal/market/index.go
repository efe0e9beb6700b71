// Package market maintains a benchmark price index used for negotiation
// leverage and savings baselines.
package market

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"contract-risk-eval/backend/internal/store"
)

// Candidates below this similarity are too far from the query to serve as
// a price reference.
const similarityFloor = 0.8

// Benchmark is the closest market reference for a line-item description.
type Benchmark struct {
	Description string
	UnitPrice   float64
	Source      string
	Similarity  float64
}

// Index manages benchmark price persistence and similarity lookup.
type Index struct {
	db      *store.Database
	cache   map[string]cacheEntry
	cacheMu sync.RWMutex
}

type cacheEntry struct {
	match Benchmark
	found bool
}

// NewIndex constructs an index over the shared store.
func NewIndex(db *store.Database) *Index {
	return &Index{db: db, cache: make(map[string]cacheEntry)}
}

// LoadFromCSV ingests a benchmark CSV (description, unit_price, source) and
// replaces the stored inventory. Rows priced below minPrice are skipped.
func (x *Index) LoadFromCSV(path string, minPrice float64) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("benchmark path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open benchmark file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1

	var prices []store.BenchmarkPrice
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read benchmark row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		rawDesc := strings.TrimSpace(row[0])
		normalized := normalize(rawDesc)
		if normalized == "" || normalized == "description" {
			continue
		}

		var price float64
		if len(row) > 1 {
			value := strings.TrimSpace(row[1])
			if value == "" || strings.EqualFold(value, "unit_price") {
				continue
			}
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			price = parsed
		}
		if price < minPrice {
			continue
		}

		source := ""
		if len(row) > 2 {
			source = strings.TrimSpace(row[2])
		}

		prices = append(prices, store.BenchmarkPrice{
			Description: rawDesc,
			Normalized:  normalized,
			Prefix:      prefix(normalized, 3),
			Length:      runeLen(normalized),
			UnitPrice:   price,
			Source:      source,
		})
	}

	if err := x.db.ReplaceBenchmarkPrices(prices); err != nil {
		return 0, err
	}

	x.cacheMu.Lock()
	x.cache = make(map[string]cacheEntry)
	x.cacheMu.Unlock()

	return len(prices), nil
}

// Count returns the number of stored benchmark rows.
func (x *Index) Count() int {
	if x == nil {
		return 0
	}
	count, err := x.db.CountBenchmarkPrices()
	if err != nil {
		return 0
	}
	return int(count)
}

// BestMatch returns the closest stored benchmark for a description.
func (x *Index) BestMatch(description string) (Benchmark, bool) {
	normalized := normalize(description)
	if normalized == "" {
		return Benchmark{}, false
	}

	if cached, ok := x.lookupCache(normalized); ok {
		return cached.match, cached.found
	}

	targetLen := runeLen(normalized)
	minLen := targetLen - 4
	if minLen < 1 {
		minLen = 1
	}
	maxLen := targetLen + 4

	searchPrefixes := [][]string{
		uniqueNonEmpty([]string{prefix(normalized, 3)}),
		uniqueNonEmpty([]string{prefix(normalized, 2)}),
		uniqueNonEmpty([]string{prefix(normalized, 1)}),
		nil,
	}

	var best Benchmark
	var found bool

	for _, prefixes := range searchPrefixes {
		candidates, err := x.db.FindBenchmarkCandidates(prefixes, minLen, maxLen, targetLen, 75)
		if err != nil {
			continue
		}
		for _, candidate := range candidates {
			sim := similarity(normalized, candidate.Normalized)
			if sim > best.Similarity {
				best = Benchmark{
					Description: candidate.Description,
					UnitPrice:   candidate.UnitPrice,
					Source:      candidate.Source,
					Similarity:  sim,
				}
				found = true
			}
		}
		if found && best.Similarity >= 0.95 {
			break
		}
	}

	if best.Similarity < similarityFloor {
		best = Benchmark{}
		found = false
	}

	x.storeCache(normalized, cacheEntry{match: best, found: found})
	if !found {
		return Benchmark{}, false
	}
	return best, true
}

func (x *Index) lookupCache(key string) (cacheEntry, bool) {
	x.cacheMu.RLock()
	defer x.cacheMu.RUnlock()
	entry, ok := x.cache[key]
	return entry, ok
}

func (x *Index) storeCache(key string, entry cacheEntry) {
	x.cacheMu.Lock()
	x.cache[key] = entry
	x.cacheMu.Unlock()
}

func uniqueNonEmpty(items []string) []string {
	var result []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(value))), " ")
}

func prefix(value string, size int) string {
	if size <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) < size {
		size = len(runes)
	}
	if size <= 0 {
		return ""
	}
	return string(runes[:size])
}

func runeLen(value string) int {
	return len([]rune(value))
}

func similarity(a, b string) float64 {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 && len(bRunes) == 0 {
		return 1
	}
	if len(aRunes) == 0 || len(bRunes) == 0 {
		return 0
	}

	dist := levenshtein(aRunes, bRunes)
	maxLen := math.Max(float64(len(aRunes)), float64(len(bRunes)))
	score := 1 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func levenshtein(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	dp := make([]int, rows*cols)
	index := func(r, c int) int { return r*cols + c }

	for r := 0; r < rows; r++ {
		dp[index(r, 0)] = r
	}
	for c := 0; c < cols; c++ {
		dp[index(0, c)] = c
	}

	for r := 1; r < rows; r++ {
		for c := 1; c < cols; c++ {
			cost := 0
			if a[r-1] != b[c-1] {
				cost = 1
			}
			deletion := dp[index(r-1, c)] + 1
			insertion := dp[index(r, c-1)] + 1
			substitution := dp[index(r-1, c-1)] + cost
			dp[index(r, c)] = minInt(deletion, insertion, substitution)
		}
	}
	return dp[index(rows-1, cols-1)]
}

func minInt(values ...int) int {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
