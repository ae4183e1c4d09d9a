package model

import "fmt"

// MaxFailingSamples caps the offending values materialized for one check
const MaxFailingSamples = 100

// TruncationMarker is appended after MaxFailingSamples entries
const TruncationMarker = "... and more (truncated to 100 values)"

// FailingSample is one concrete offending value of a failed check
type FailingSample struct {
	Value     string `json:"value"`
	Count     int64  `json:"count,omitempty"`
	Note      string `json:"note,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// String renders the sample the way it is archived and exported
func (s FailingSample) String() string {
	switch {
	case s.Truncated:
		return TruncationMarker
	case s.Note != "":
		return fmt.Sprintf("%s (%s)", s.Value, s.Note)
	case s.Count > 0:
		return fmt.Sprintf("%s (appears %d times)", s.Value, s.Count)
	default:
		return s.Value
	}
}

// TruncateSamples keeps at most MaxFailingSamples entries and appends the marker when cut
func TruncateSamples(samples []FailingSample) []FailingSample {
	if len(samples) <= MaxFailingSamples {
		return samples
	}
	out := make([]FailingSample, 0, MaxFailingSamples+1)
	out = append(out, samples[:MaxFailingSamples]...)
	return append(out, FailingSample{Truncated: true})
}
