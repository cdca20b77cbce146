package decision_test

import (
	"strings"
	"testing"

	"trimsync/internal/decision"
	"trimsync/internal/services"
	"trimsync/internal/timeline"
)

func TestValidateOverride(t *testing.T) {
	constraints := decision.OverrideConstraints{
		VideoDurationSec:  10,
		TargetDurationSec: 8,
	}
	cases := []struct {
		name        string
		keep        timeline.Range
		constraints decision.OverrideConstraints
		wantCode    services.Code
		wantInMsg   string
	}{
		{
			name:        "negative start rejected",
			keep:        timeline.Range{StartSec: -1, EndSec: 8},
			constraints: constraints,
			wantCode:    services.CodeInvalidOverrideRange,
			wantInMsg:   "outside bounds",
		},
		{
			name:        "end beyond video rejected",
			keep:        timeline.Range{StartSec: 2, EndSec: 10.5},
			constraints: constraints,
			wantCode:    services.CodeInvalidOverrideRange,
			wantInMsg:   "outside bounds",
		},
		{
			name:        "inverted range rejected",
			keep:        timeline.Range{StartSec: 8, EndSec: 8},
			constraints: constraints,
			wantCode:    services.CodeInvalidOverrideRange,
		},
		{
			name:        "duration off by a second rejected",
			keep:        timeline.Range{StartSec: 1, EndSec: 8},
			constraints: constraints,
			wantCode:    services.CodeInvalidOverrideRange,
			wantInMsg:   "tolerance",
		},
		{
			name:        "exact match accepted",
			keep:        timeline.Range{StartSec: 0, EndSec: 8},
			constraints: constraints,
		},
		{
			name:        "within tolerance accepted",
			keep:        timeline.Range{StartSec: 1.8, EndSec: 10},
			constraints: constraints,
		},
		{
			name: "non-tail cut with replacement audio rejected",
			keep: timeline.Range{StartSec: 0.5, EndSec: 8.5},
			constraints: decision.OverrideConstraints{
				VideoDurationSec:    10,
				TargetDurationSec:   8,
				HasReplacementAudio: true,
			},
			wantCode:  services.CodeNoSyncSafeCut,
			wantInMsg: "tail-only",
		},
		{
			name: "tail cut with replacement audio accepted",
			keep: timeline.Range{StartSec: 0, EndSec: 8},
			constraints: decision.OverrideConstraints{
				VideoDurationSec:    10,
				TargetDurationSec:   8,
				HasReplacementAudio: true,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decision.ValidateOverride(tc.keep, tc.constraints)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected override to pass, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if code := services.CodeOf(err, ""); code != tc.wantCode {
				t.Fatalf("expected code %s, got %s (%v)", tc.wantCode, code, err)
			}
			if tc.wantInMsg != "" && !strings.Contains(err.Error(), tc.wantInMsg) {
				t.Fatalf("expected message to mention %q, got %q", tc.wantInMsg, err.Error())
			}
		})
	}
}
