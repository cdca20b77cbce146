package decision

import (
	"fmt"

	"trimsync/internal/services"
	"trimsync/internal/timeline"
)

// durationToleranceSec is the allowed deviation between a keep range's
// length and the target duration. The renderer applies the same tolerance
// to the probed output.
const durationToleranceSec = 0.25

// syncSafeStartSec is the largest keep-range start still considered a
// tail-only cut when replacement audio is attached.
const syncSafeStartSec = 0.001

// OverrideConstraints are the job facts an override is checked against.
type OverrideConstraints struct {
	VideoDurationSec    float64
	TargetDurationSec   float64
	HasReplacementAudio bool
}

// ValidateOverride checks a user-supplied keep range against job
// constraints. It is pure: callers invoke it before accepting an override
// and again immediately before rendering.
func ValidateOverride(keep timeline.Range, constraints OverrideConstraints) error {
	if keep.StartSec < 0 || keep.EndSec > constraints.VideoDurationSec {
		return services.NewError(services.CodeInvalidOverrideRange,
			fmt.Sprintf("keep range [%.2f, %.2f) is outside bounds [0, %.2f]",
				keep.StartSec, keep.EndSec, constraints.VideoDurationSec))
	}
	if keep.EndSec <= keep.StartSec {
		return services.NewError(services.CodeInvalidOverrideRange,
			fmt.Sprintf("keep range [%.2f, %.2f) is outside bounds: end must exceed start",
				keep.StartSec, keep.EndSec))
	}
	length := keep.Length()
	deviation := length - constraints.TargetDurationSec
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > durationToleranceSec {
		return services.NewError(services.CodeInvalidOverrideRange,
			fmt.Sprintf("keep range length %.2fs misses the %.2fs target beyond the %.2fs tolerance",
				length, constraints.TargetDurationSec, durationToleranceSec))
	}
	if constraints.HasReplacementAudio && keep.StartSec > syncSafeStartSec {
		return services.NewError(services.CodeNoSyncSafeCut,
			fmt.Sprintf("replacement audio requires a tail-only cut: keep range must start at 0, got %.3f",
				keep.StartSec))
	}
	return nil
}
