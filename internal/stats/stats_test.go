package stats

import (
	"math"
	"os"
	"testing"
	"time"
)

func setupTestDir(t *testing.T) {
	t.Helper()
	t.Setenv("LMCHAT_HOME", t.TempDir())
}

func TestSaveAndLoadAll(t *testing.T) {
	setupTestDir(t)

	err := Save(Record{
		Endpoint: "http://localhost:1234",
		Model:    "qwen2.5",
		Outcome:  "completed",
		Chunks:   12,
		Chars:    340,
		Elapsed:  1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Model != "qwen2.5" || records[0].Chunks != 12 {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[0].Elapsed != 1500 {
		t.Errorf("expected elapsed stored as 1500ms, got %d", records[0].Elapsed)
	}
}

func TestSummarize_Empty(t *testing.T) {
	setupTestDir(t)

	s, err := Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.TotalTurns != 0 {
		t.Errorf("expected 0 turns, got %d", s.TotalTurns)
	}
	if s.OutcomeBreakdown == nil {
		t.Error("expected non-nil outcome breakdown")
	}
}

func TestSummarize_WithData(t *testing.T) {
	setupTestDir(t)

	Save(Record{Model: "llama", Outcome: "completed", Chars: 100, Elapsed: time.Second})
	Save(Record{Model: "llama", Outcome: "completed", Chars: 300, Elapsed: time.Second})
	Save(Record{Model: "qwen", Outcome: "cancelled", Chars: 0, Elapsed: 400 * time.Millisecond})

	s, err := Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.TotalTurns != 3 {
		t.Errorf("expected 3 turns, got %d", s.TotalTurns)
	}
	if s.CompletionRate < 66 || s.CompletionRate > 67 {
		t.Errorf("expected ~66%% completion rate, got %.0f%%", s.CompletionRate)
	}
	if s.OutcomeBreakdown["completed"] != 2 || s.OutcomeBreakdown["cancelled"] != 1 {
		t.Errorf("unexpected outcome breakdown: %v", s.OutcomeBreakdown)
	}
	if s.TotalChars != 400 {
		t.Errorf("expected 400 chars, got %d", s.TotalChars)
	}
	if s.AvgElapsedMs != 800 {
		t.Errorf("expected avg 800ms, got %d", s.AvgElapsedMs)
	}
	// The empty cancelled turn is left out of the throughput average.
	if math.Abs(s.AvgCharsPerSec-200) > 0.001 {
		t.Errorf("expected 200 chars/s, got %f", s.AvgCharsPerSec)
	}
	if len(s.TopModels) != 2 || s.TopModels[0] != (ModelCount{Model: "llama", Count: 2}) {
		t.Errorf("unexpected top models: %+v", s.TopModels)
	}
	if s.TodayCount != 3 || s.ThisWeekCount != 3 {
		t.Errorf("expected 3 today and this week, got %d/%d", s.TodayCount, s.ThisWeekCount)
	}
}

func TestSave_CapsAtMax(t *testing.T) {
	setupTestDir(t)

	for i := 0; i < maxRecords+10; i++ {
		Save(Record{Outcome: "completed"})
	}

	records, _ := LoadAll()
	if len(records) != maxRecords {
		t.Errorf("expected %d records, got %d", maxRecords, len(records))
	}
}

func TestLoadAll_NoFile(t *testing.T) {
	setupTestDir(t)

	records, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll on missing file should not error: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records, got %v", records)
	}
}

func TestTopN(t *testing.T) {
	tests := []struct {
		name string
		freq map[string]int
		n    int
		want []ModelCount
	}{
		{"empty", map[string]int{}, 5, nil},
		{"fewer than n", map[string]int{"a": 5, "b": 3}, 10, []ModelCount{{"a", 5}, {"b", 3}}},
		{"truncated", map[string]int{"a": 1, "b": 4, "c": 2}, 2, []ModelCount{{"b", 4}, {"c", 2}}},
		{"ties by name", map[string]int{"z": 2, "y": 2}, 2, []ModelCount{{"y", 2}, {"z", 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topN(tt.freq, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("at %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestSave_CorruptFileIsNotOverwritten(t *testing.T) {
	setupTestDir(t)
	corrupt := []byte("{not json")
	if err := os.WriteFile(statsPath(), corrupt, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Save(Record{Model: "m", Outcome: "completed"}); err == nil {
		t.Fatal("expected an error for a corrupt file")
	}
	data, err := os.ReadFile(statsPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(corrupt) {
		t.Errorf("corrupt file was overwritten: %q", data)
	}
}
