// Package analysis defines the result structure produced by the external
// analysis worker and helpers for loading it from disk.
package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"trimsync/internal/timeline"
)

// SpeechRegion is a transcribed span of detected speech. Speech is treated
// as ground truth the decision engine must protect.
type SpeechRegion struct {
	timeline.Range
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// LowInfoRegion marks a span with little visual or audible information.
// Higher scores mean the span is more removable.
type LowInfoRegion struct {
	timeline.Range
	Score float64 `json:"score"`
}

// Result is the full output of one analysis run. It is immutable once
// produced and owned by the job it was computed for.
type Result struct {
	SpeechRegions  []SpeechRegion   `json:"speechRegions"`
	SilenceRegions []timeline.Range `json:"silenceRegions"`
	SceneCutsSec   []float64        `json:"sceneCutsSec"`
	LowInfoRegions []LowInfoRegion  `json:"lowInfoRegions"`
	Warnings       []string         `json:"warnings"`
}

// Load reads and decodes an analysis result file written by the worker.
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis result: %w", err)
	}
	return Parse(data)
}

// Parse decodes an analysis result payload and normalizes its ordering.
func Parse(data []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse analysis result: %w", err)
	}
	result.normalize()
	return &result, nil
}

func (r *Result) normalize() {
	for i, region := range r.SpeechRegions {
		r.SpeechRegions[i].Range = region.Range.Normalize()
	}
	sort.Slice(r.SpeechRegions, func(i, j int) bool {
		if r.SpeechRegions[i].StartSec != r.SpeechRegions[j].StartSec {
			return r.SpeechRegions[i].StartSec < r.SpeechRegions[j].StartSec
		}
		return r.SpeechRegions[i].EndSec < r.SpeechRegions[j].EndSec
	})
	for i, region := range r.SilenceRegions {
		r.SilenceRegions[i] = region.Normalize()
	}
	for i, region := range r.LowInfoRegions {
		r.LowInfoRegions[i].Range = region.Range.Normalize()
	}
	sort.Float64s(r.SceneCutsSec)
}

// SpeechRanges returns the bare time ranges of every speech region.
func (r *Result) SpeechRanges() []timeline.Range {
	ranges := make([]timeline.Range, 0, len(r.SpeechRegions))
	for _, region := range r.SpeechRegions {
		ranges = append(ranges, region.Range)
	}
	return ranges
}
