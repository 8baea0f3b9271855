package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteCatalog writes a playlistItems response into dir/name. Each entry is
// {videoID, title, videoPublishedAt} with the time in RFC 3339.
func WriteCatalog(t testing.TB, dir, name string, entries ...[3]string) string {
	t.Helper()

	type snippet struct {
		Title string `json:"title"`
	}
	type details struct {
		VideoID          string `json:"videoId"`
		VideoPublishedAt string `json:"videoPublishedAt"`
	}
	type item struct {
		Snippet        snippet `json:"snippet"`
		ContentDetails details `json:"contentDetails"`
	}
	payload := struct {
		Items []item `json:"items"`
	}{Items: make([]item, 0, len(entries))}
	for _, e := range entries {
		payload.Items = append(payload.Items, item{
			Snippet:        snippet{Title: e[1]},
			ContentDetails: details{VideoID: e[0], VideoPublishedAt: e[2]},
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
