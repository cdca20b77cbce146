package decision

import (
	"fmt"

	"trimsync/internal/analysis"
	"trimsync/internal/services"
	"trimsync/internal/timeline"
)

// Strategy names the trim approach a decision settled on.
type Strategy string

const (
	StrategyOutro      Strategy = "outro"
	StrategyIntro      Strategy = "intro"
	StrategyIntroOutro Strategy = "intro_outro"
	StrategyFallback   Strategy = "fallback_low_density"
)

const (
	// speechPadSec expands every speech region before it becomes protected.
	speechPadSec = 0.35
	// overlapToleranceSec is the speech contact a trim may have and still
	// be considered safe.
	overlapToleranceSec = 0.02
	// negativeDeltaToleranceSec absorbs probe jitter when the replacement
	// audio is nominally the same length as the video.
	negativeDeltaToleranceSec = 0.01
	// fallbackConfidenceFloor bounds how far speech contact can drag the
	// fallback strategy's confidence down.
	fallbackConfidenceFloor = 0.4
)

var baseConfidence = map[Strategy]float64{
	StrategyOutro:      0.88,
	StrategyIntro:      0.78,
	StrategyIntroOutro: 0.72,
	StrategyFallback:   0.62,
}

// Decision is the engine's proposal. It is immutable; a later decision or a
// user override supersedes it, never mutates it.
type Decision struct {
	KeepRange       timeline.Range   `json:"keepRange"`
	TrimNeededSec   float64          `json:"trimNeededSec"`
	Strategy        Strategy         `json:"strategy"`
	Confidence      float64          `json:"confidence"`
	Reasoning       []string         `json:"reasoning"`
	ProtectedRanges []timeline.Range `json:"protectedRanges"`
}

// Input bundles everything the engine needs for one decision.
type Input struct {
	VideoDurationSec    float64
	TargetDurationSec   float64
	Analysis            *analysis.Result
	HasReplacementAudio bool
}

type candidate struct {
	strategy Strategy
	keep     timeline.Range
	trims    []timeline.Range
}

// Compute evaluates trim strategies in fixed preference order and returns
// the first speech-safe proposal, falling back to a low-density edge pick
// when no ordered candidate is safe and no replacement audio constrains the
// cut to the tail.
func Compute(in Input) (*Decision, error) {
	trimNeeded := in.VideoDurationSec - in.TargetDurationSec
	if trimNeeded < -negativeDeltaToleranceSec {
		return nil, services.NewError(services.CodeAudioLongerThanVideo,
			fmt.Sprintf("replacement audio (%.2fs) is not shorter than the video (%.2fs)",
				in.TargetDurationSec, in.VideoDurationSec))
	}
	if trimNeeded < 0 {
		trimNeeded = 0
	}

	protected := protectedRanges(in.Analysis, in.VideoDurationSec)
	reasoning := []string{
		fmt.Sprintf("need to trim %.2fs from a %.2fs video to hit %.2fs",
			trimNeeded, in.VideoDurationSec, in.TargetDurationSec),
		fmt.Sprintf("protecting %d speech range(s) padded by %.2fs", len(protected), speechPadSec),
	}

	for _, cand := range orderedCandidates(in, trimNeeded) {
		overlap := trimOverlap(cand.trims, protected)
		if cand.keep.StartSec < 0 || cand.keep.EndSec > in.VideoDurationSec {
			reasoning = append(reasoning, fmt.Sprintf("%s rejected: keep range outside video bounds", cand.strategy))
			continue
		}
		if overlap > overlapToleranceSec {
			reasoning = append(reasoning, fmt.Sprintf("%s rejected: trim touches %.2fs of protected speech", cand.strategy, overlap))
			continue
		}

		coverage := silenceCoverage(cand.trims, in.Analysis, trimNeeded)
		reasoning = append(reasoning,
			fmt.Sprintf("%s accepted: speech contact %.2fs, silence coverage %.0f%%", cand.strategy, overlap, coverage*100))
		return &Decision{
			KeepRange:       cand.keep,
			TrimNeededSec:   trimNeeded,
			Strategy:        cand.strategy,
			Confidence:      confidence(cand.strategy, coverage, overlapRatio(overlap, trimNeeded), 0),
			Reasoning:       reasoning,
			ProtectedRanges: protected,
		}, nil
	}

	if in.HasReplacementAudio {
		return nil, services.NewError(services.CodeNoSyncSafeCut,
			"no tail-only cut avoids protected speech; replacement audio requires the keep range to start at 0")
	}

	return fallbackDecision(in, trimNeeded, protected, reasoning)
}

// orderedCandidates generates strategy candidates in preference order.
// Intro-touching strategies are withheld when replacement audio is present
// because only tail trims preserve audio/video sync.
func orderedCandidates(in Input, trimNeeded float64) []candidate {
	candidates := []candidate{{
		strategy: StrategyOutro,
		keep:     timeline.Range{StartSec: 0, EndSec: in.TargetDurationSec},
		trims:    positiveRanges(timeline.Range{StartSec: in.TargetDurationSec, EndSec: in.VideoDurationSec}),
	}}
	if in.HasReplacementAudio || trimNeeded <= 0 {
		return candidates
	}

	candidates = append(candidates, candidate{
		strategy: StrategyIntro,
		keep:     timeline.Range{StartSec: trimNeeded, EndSec: in.VideoDurationSec},
		trims:    positiveRanges(timeline.Range{StartSec: 0, EndSec: trimNeeded}),
	})

	half := trimNeeded / 2
	split := candidate{
		strategy: StrategyIntroOutro,
		keep:     timeline.Range{StartSec: half, EndSec: in.VideoDurationSec - half},
		trims: positiveRanges(
			timeline.Range{StartSec: 0, EndSec: half},
			timeline.Range{StartSec: in.VideoDurationSec - half, EndSec: in.VideoDurationSec},
		),
	}
	if len(split.trims) == 2 {
		candidates = append(candidates, split)
	}
	return candidates
}

func fallbackDecision(in Input, trimNeeded float64, protected []timeline.Range, reasoning []string) (*Decision, error) {
	introTrim := timeline.Range{StartSec: 0, EndSec: trimNeeded}
	outroTrim := timeline.Range{StartSec: in.TargetDurationSec, EndSec: in.VideoDurationSec}

	introScore := lowInfoContact(introTrim, in.Analysis)
	outroScore := lowInfoContact(outroTrim, in.Analysis)

	// Lower aggregate low-info contact wins; an exact tie trims the outro.
	trim, keep := outroTrim, timeline.Range{StartSec: 0, EndSec: in.TargetDurationSec}
	edge := "outro"
	if introScore < outroScore {
		trim, keep = introTrim, timeline.Range{StartSec: trimNeeded, EndSec: in.VideoDurationSec}
		edge = "intro"
	}

	overlap := trimOverlap([]timeline.Range{trim}, protected)
	coverage := silenceCoverage([]timeline.Range{trim}, in.Analysis, trimNeeded)
	reasoning = append(reasoning,
		fmt.Sprintf("fallback comparing low-info contact: intro %.3f vs outro %.3f, trimming %s", introScore, outroScore, edge),
		fmt.Sprintf("fallback accepts %.2fs of residual speech contact", overlap))

	return &Decision{
		KeepRange:       keep,
		TrimNeededSec:   trimNeeded,
		Strategy:        StrategyFallback,
		Confidence:      confidence(StrategyFallback, coverage, overlapRatio(overlap, trimNeeded), fallbackConfidenceFloor),
		Reasoning:       reasoning,
		ProtectedRanges: protected,
	}, nil
}

func protectedRanges(result *analysis.Result, videoDurationSec float64) []timeline.Range {
	if result == nil {
		return nil
	}
	padded := make([]timeline.Range, 0, len(result.SpeechRegions))
	for _, region := range result.SpeechRegions {
		padded = append(padded, timeline.Pad(region.Range, speechPadSec, videoDurationSec))
	}
	return timeline.Merge(padded)
}

func positiveRanges(ranges ...timeline.Range) []timeline.Range {
	out := make([]timeline.Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Length() > 0 {
			out = append(out, r)
		}
	}
	return out
}

func trimOverlap(trims, protected []timeline.Range) float64 {
	total := 0.0
	for _, trim := range trims {
		total += timeline.TotalOverlap(trim, protected)
	}
	return total
}

func silenceCoverage(trims []timeline.Range, result *analysis.Result, trimNeeded float64) float64 {
	if result == nil || trimNeeded <= 0 {
		return 0
	}
	silence := timeline.Merge(result.SilenceRegions)
	covered := 0.0
	for _, trim := range trims {
		covered += timeline.TotalOverlap(trim, silence)
	}
	ratio := covered / trimNeeded
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func lowInfoContact(trim timeline.Range, result *analysis.Result) float64 {
	if result == nil {
		return 0
	}
	total := 0.0
	for _, region := range result.LowInfoRegions {
		total += timeline.IntersectionLength(trim, region.Range) * region.Score
	}
	return total
}

func overlapRatio(overlap, trimNeeded float64) float64 {
	if trimNeeded <= 0 {
		return 0
	}
	return overlap / trimNeeded
}

func confidence(strategy Strategy, coverage, overlapRatio, floor float64) float64 {
	value := baseConfidence[strategy] + coverage*0.1 - overlapRatio*0.5
	if value < floor {
		value = floor
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return value
}
