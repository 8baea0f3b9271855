// Package clipstore persists refined marker ranges per video and names the
// clip files cut from them.
//
// Results live in <dir>/<id>.json and are replaced atomically, so a reader
// never observes a half-written file. The cut clip for the same video is
// <dir>/<id>.mkv.
package clipstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"markercut/internal/detect"
	"markercut/internal/fileutil"
	"markercut/internal/services"
	"markercut/internal/textutil"
	"markercut/internal/timecode"
)

const (
	resultExt = ".json"
	clipExt   = ".mkv"
)

// Store reads and writes results under one directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// ResultPath returns the JSON path for videoID.
func (s *Store) ResultPath(videoID string) string {
	return filepath.Join(s.dir, videoID+resultExt)
}

// ClipPath returns the path of the cut clip for videoID.
func (s *Store) ClipPath(videoID string) string {
	return filepath.Join(s.dir, videoID+clipExt)
}

// Exists reports whether a result has been written for videoID.
func (s *Store) Exists(videoID string) bool {
	return fileutil.Exists(s.ResultPath(videoID))
}

// ClipExists reports whether the cut clip for videoID is present.
func (s *Store) ClipExists(videoID string) bool {
	_, ok := fileutil.FirstExisting(s.ClipPath(videoID))
	return ok
}

// Write atomically replaces the result for videoID.
func (s *Store) Write(videoID string, result detect.Result) error {
	if !textutil.ValidVideoID(videoID) {
		return services.Wrap(services.ErrValidation, "clipstore", "write", fmt.Sprintf("invalid video id %q", videoID), nil)
	}
	ranges := result.Ranges
	if ranges == nil {
		ranges = []detect.Range{}
	}
	payload, err := json.Marshal(detect.Result{Ranges: ranges})
	if err != nil {
		return services.Wrap(services.ErrValidation, "clipstore", "encode result", videoID, err)
	}
	if err := fileutil.WriteFileAtomic(s.ResultPath(videoID), payload, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "clipstore", "write result", videoID, err)
	}
	return nil
}

// Read loads the result for videoID. A missing file is ErrNotFound. Both the
// current object form and the older [[start,end],...] tuple form decode.
func (s *Store) Read(videoID string) (detect.Result, error) {
	if !textutil.ValidVideoID(videoID) {
		return detect.Result{}, services.Wrap(services.ErrValidation, "clipstore", "read", fmt.Sprintf("invalid video id %q", videoID), nil)
	}
	payload, err := os.ReadFile(s.ResultPath(videoID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return detect.Result{}, services.Wrap(services.ErrNotFound, "clipstore", "read result", videoID, err)
		}
		return detect.Result{}, services.Wrap(services.ErrIO, "clipstore", "read result", videoID, err)
	}
	result, err := Decode(payload)
	if err != nil {
		return detect.Result{}, services.Wrap(services.ErrValidation, "clipstore", "decode result", videoID, err)
	}
	return result, nil
}

type wireResult struct {
	Ranges []json.RawMessage `json:"ranges"`
}

// Decode parses a stored result in either accepted form. Every range must
// start before it ends.
func Decode(payload []byte) (detect.Result, error) {
	var wire wireResult
	if err := json.Unmarshal(payload, &wire); err != nil {
		return detect.Result{}, err
	}
	ranges := make([]detect.Range, 0, len(wire.Ranges))
	for i, raw := range wire.Ranges {
		r, err := decodeRange(raw)
		if err != nil {
			return detect.Result{}, fmt.Errorf("range %d: %w", i, err)
		}
		if !r.Valid() {
			return detect.Result{}, fmt.Errorf("range %d: start %s is not before end %s", i, r.Start, r.End)
		}
		ranges = append(ranges, r)
	}
	return detect.Result{Ranges: ranges}, nil
}

func decodeRange(raw json.RawMessage) (detect.Range, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var pair []timecode.Timestamp
		if err := json.Unmarshal(raw, &pair); err != nil {
			return detect.Range{}, err
		}
		if len(pair) != 2 {
			return detect.Range{}, fmt.Errorf("expected [start, end], got %d elements", len(pair))
		}
		return detect.Range{Start: pair[0], End: pair[1]}, nil
	}
	var r detect.Range
	if err := json.Unmarshal(raw, &r); err != nil {
		return detect.Range{}, err
	}
	return r, nil
}
