// Package captions builds the SRT track shown over the compilation: one cue
// per clip, titled with the source video, laid end to end.
package captions

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"markercut/internal/fileutil"
	"markercut/internal/textutil"
	"markercut/internal/timecode"
)

// Cue is one numbered subtitle entry.
type Cue struct {
	Index int
	Start timecode.Timestamp
	End   timecode.Timestamp
	Text  string
}

// Track accumulates back-to-back cues starting at zero.
type Track struct {
	cues   []Cue
	cursor timecode.Timestamp
}

// Append adds a cue lasting duration right after the previous one. Titles are
// normalized; an empty title falls back to fallback.
func (t *Track) Append(title, fallback string, duration timecode.Timestamp) Cue {
	text := textutil.NormalizeTitle(title)
	if text == "" {
		text = textutil.NormalizeTitle(fallback)
	}
	cue := Cue{
		Index: len(t.cues) + 1,
		Start: t.cursor,
		End:   t.cursor.Add(duration),
		Text:  text,
	}
	t.cues = append(t.cues, cue)
	t.cursor = cue.End
	return cue
}

// Len returns the number of cues.
func (t *Track) Len() int { return len(t.cues) }

// End returns the end of the last cue.
func (t *Track) End() timecode.Timestamp { return t.cursor }

// WriteTo renders the track in SubRip format.
func (t *Track) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, cue := range t.cues {
		n, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", cue.Index, cue.Start.SRT(), cue.End.SRT(), cue.Text)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// WriteFile atomically writes the rendered track to path.
func (t *Track) WriteFile(path string) error {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
