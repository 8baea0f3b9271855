// Package timecode provides the millisecond-resolution position type shared by
// frame extraction, boundary detection, clip cutting, and caption rendering.
//
// Timestamp is an immutable value: every constructor and arithmetic helper
// returns a normalized copy whose millisecond part stays in [0, 1000).
package timecode

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Timestamp is a non-negative position within a video.
type Timestamp struct {
	sec uint64
	ms  uint64
}

// Zero is the start of a video.
var Zero = Timestamp{}

// New builds a timestamp, carrying millisecond overflow into whole seconds.
func New(seconds, millis uint64) Timestamp {
	return Timestamp{sec: seconds + millis/1000, ms: millis % 1000}
}

// FromSeconds converts a floating-point offset. Fractions are rounded to the
// nearest millisecond; negative and NaN inputs clamp to Zero.
func FromSeconds(value float64) Timestamp {
	if math.IsNaN(value) || value <= 0 {
		return Zero
	}
	whole := math.Floor(value)
	millis := math.Round((value - whole) * 1000)
	return New(uint64(whole), uint64(millis))
}

// FromDuration converts a non-negative duration, truncating below a millisecond.
func FromDuration(d time.Duration) Timestamp {
	if d <= 0 {
		return Zero
	}
	return New(0, uint64(d/time.Millisecond))
}

// Whole returns the whole-second component.
func (t Timestamp) Whole() uint64 { return t.sec }

// Millis returns the sub-second component in milliseconds.
func (t Timestamp) Millis() uint64 { return t.ms }

// Seconds returns the position as floating-point seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t.sec) + float64(t.ms)/1000
}

// TotalMillis returns the position in milliseconds.
func (t Timestamp) TotalMillis() uint64 {
	return t.sec*1000 + t.ms
}

// Add returns the normalized sum of two timestamps.
func (t Timestamp) Add(other Timestamp) Timestamp {
	return New(t.sec+other.sec, t.ms+other.ms)
}

// AddSeconds shifts by a signed number of whole seconds, saturating at Zero.
func (t Timestamp) AddSeconds(n int64) Timestamp {
	if n >= 0 {
		return Timestamp{sec: t.sec + uint64(n), ms: t.ms}
	}
	back := uint64(-n)
	if back > t.sec {
		return Zero
	}
	return Timestamp{sec: t.sec - back, ms: t.ms}
}

// Sub returns the signed distance t - other.
func (t Timestamp) Sub(other Timestamp) time.Duration {
	return time.Duration(int64(t.TotalMillis())-int64(other.TotalMillis())) * time.Millisecond
}

// Compare returns -1, 0, or +1 ordering by seconds then milliseconds.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.sec < other.sec:
		return -1
	case t.sec > other.sec:
		return 1
	case t.ms < other.ms:
		return -1
	case t.ms > other.ms:
		return 1
	default:
		return 0
	}
}

// Before reports whether t sorts strictly before other.
func (t Timestamp) Before(other Timestamp) bool { return t.Compare(other) < 0 }

// Equal reports whether both components match.
func (t Timestamp) Equal(other Timestamp) bool { return t == other }

// HMS splits the whole-second component into hours, minutes, and seconds.
func (t Timestamp) HMS() (hours, minutes, seconds uint64) {
	hours = t.sec / 3600
	minutes = (t.sec % 3600) / 60
	seconds = t.sec % 60
	return hours, minutes, seconds
}

// String renders HH:MM:SS.mmm, the form ffmpeg accepts for -ss and -to.
func (t Timestamp) String() string {
	h, m, s := t.HMS()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, t.ms)
}

// SRT renders HH:MM:SS,mmm for subtitle cues.
func (t Timestamp) SRT() string {
	h, m, s := t.HMS()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, t.ms)
}

type wireTimestamp struct {
	Seconds      uint64 `json:"seconds"`
	Milliseconds uint64 `json:"milliseconds"`
}

// MarshalJSON encodes {"seconds": n, "milliseconds": n}.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTimestamp{Seconds: t.sec, Milliseconds: t.ms})
}

// UnmarshalJSON decodes and normalizes the wire form.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var wire wireTimestamp
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	*t = New(wire.Seconds, wire.Milliseconds)
	return nil
}

// Range is a half-open span of a video between two timestamps.
type Range struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

// Valid reports whether Start sorts strictly before End.
func (r Range) Valid() bool { return r.Start.Before(r.End) }

func (r Range) String() string { return r.Start.String() + "-" + r.End.String() }
