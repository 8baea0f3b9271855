package framecache

import (
	"fmt"
	"strings"

	"markercut/internal/timecode"
)

// Rate is a sampling rate of Num frames per Den seconds.
type Rate struct {
	Num uint64
	Den uint64
}

// PerSecond returns the rate as frames per second.
func (r Rate) PerSecond() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Valid reports whether both terms are positive.
func (r Rate) Valid() bool { return r.Num > 0 && r.Den > 0 }

// String renders the ffmpeg fps filter form "N/D".
func (r Rate) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Window bounds an extraction. A nil bound is open.
type Window struct {
	Start *timecode.Timestamp
	End   *timecode.Timestamp
}

// Full is the unbounded window covering the whole video.
var Full = Window{}

// Between builds a closed window.
func Between(start, end timecode.Timestamp) Window {
	return Window{Start: &start, End: &end}
}

// Origin is the timestamp frame offsets are measured from.
func (w Window) Origin() timecode.Timestamp {
	if w.Start == nil {
		return timecode.Zero
	}
	return *w.Start
}

// IsFull reports whether neither bound is set.
func (w Window) IsFull() bool { return w.Start == nil && w.End == nil }

func (w Window) String() string {
	if w.IsFull() {
		return "full"
	}
	return boundLabel(w.Start) + "-" + boundLabel(w.End)
}

func boundLabel(ts *timecode.Timestamp) string {
	if ts == nil {
		return "open"
	}
	return fmt.Sprintf("%06d.%03d", ts.Whole(), ts.Millis())
}

// Key identifies one extraction batch.
type Key struct {
	VideoID string
	Window  Window
	Rate    Rate
}

// Name is the storage directory name for the key's window and rate, for
// example "full-r1_1" or "w000008.500-000012.500-r30_1".
func (k Key) Name() string {
	var b strings.Builder
	if k.Window.IsFull() {
		b.WriteString("full")
	} else {
		b.WriteByte('w')
		b.WriteString(k.Window.String())
	}
	fmt.Fprintf(&b, "-r%d_%d", k.Rate.Num, k.Rate.Den)
	return b.String()
}

// String includes the video identifier.
func (k Key) String() string { return k.VideoID + "/" + k.Name() }

// Frame is one extracted still.
type Frame struct {
	// Seq is the 1-based position within the extraction batch.
	Seq       uint64
	Timestamp timecode.Timestamp
	Path      string
}

// FrameTimestamp places frame seq of a batch sampled at rate from origin at
// the midpoint of its sampling interval.
func FrameTimestamp(origin timecode.Timestamp, seq uint64, rate Rate) timecode.Timestamp {
	offset := (float64(seq) - 0.5) / rate.PerSecond()
	return timecode.FromSeconds(origin.Seconds() + offset)
}
