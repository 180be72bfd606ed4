// Package stats records per-turn stream metrics (chunks, characters,
// duration, outcome, model) and persists them to ~/.lmchat/stats.json.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arin/lmchat/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is a single streamed turn.
type Record struct {
	Timestamp time.Time     `json:"timestamp"`
	Endpoint  string        `json:"endpoint"`
	Model     string        `json:"model"`
	Outcome   string        `json:"outcome"`
	Chunks    int           `json:"chunks"`
	Chars     int           `json:"chars"`
	Elapsed   time.Duration `json:"elapsed_ms"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalTurns       int            `json:"total_turns"`
	CompletionRate   float64        `json:"completion_rate"`
	TotalChars       int            `json:"total_chars"`
	AvgElapsedMs     int64          `json:"avg_elapsed_ms"`
	AvgCharsPerSec   float64        `json:"avg_chars_per_sec"`
	OutcomeBreakdown map[string]int `json:"outcome_breakdown"`
	TopModels        []ModelCount   `json:"top_models"`
	TodayCount       int            `json:"today_count"`
	ThisWeekCount    int            `json:"this_week_count"`
}

// ModelCount pairs a model with its usage count.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()
	// Store durations as milliseconds for readability.
	r.Elapsed = r.Elapsed / time.Millisecond

	records, err := loadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := LoadAll()
	if err != nil {
		return nil, err
	}
	s := &Summary{
		TotalTurns:       len(records),
		OutcomeBreakdown: map[string]int{},
	}
	if len(records) == 0 {
		return s, nil
	}

	var totalMs int64
	var rateSum float64
	var rated, completed int
	modelFreq := map[string]int{}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Outcome == "completed" {
			completed++
		}
		if r.Outcome != "" {
			s.OutcomeBreakdown[r.Outcome]++
		}
		if r.Model != "" {
			modelFreq[r.Model]++
		}
		s.TotalChars += r.Chars
		ms := int64(r.Elapsed)
		totalMs += ms
		// Turns that produced nothing say nothing about throughput.
		if ms > 0 && r.Chars > 0 {
			rateSum += float64(r.Chars) / (float64(ms) / 1000)
			rated++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.CompletionRate = float64(completed) / float64(len(records)) * 100
	s.AvgElapsedMs = totalMs / int64(len(records))
	if rated > 0 {
		s.AvgCharsPerSec = rateSum / float64(rated)
	}

	s.TopModels = topN(modelFreq, 5)

	return s, nil
}

func topN(freq map[string]int, n int) []ModelCount {
	var all []ModelCount
	for model, count := range freq {
		all = append(all, ModelCount{Model: model, Count: count})
	}
	// Simple selection sort for small N.
	for i := 0; i < len(all) && i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].Count > all[maxIdx].Count ||
				(all[j].Count == all[maxIdx].Count && all[j].Model < all[maxIdx].Model) {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}
	if len(all) > n {
		all = all[:n]
	}
	return all
}
