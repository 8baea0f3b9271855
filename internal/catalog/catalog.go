// Package catalog loads the playlist-item listings that drive the batch
// commands. Each file is a saved YouTube playlistItems response; only the
// video id, title, and published date are read.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"markercut/internal/services"
	"markercut/internal/textutil"
)

// Item is one catalog video.
type Item struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
	// File is the listing the item was read from.
	File string
}

type playlistResponse struct {
	Items []playlistItem `json:"items"`
}

type playlistItem struct {
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID          string    `json:"videoId"`
		VideoPublishedAt time.Time `json:"videoPublishedAt"`
	} `json:"contentDetails"`
}

// LoadFile decodes one listing.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "catalog", "read listing", path, err)
	}
	var resp playlistResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "decode listing", path, err)
	}
	items := make([]Item, 0, len(resp.Items))
	for i, raw := range resp.Items {
		id := strings.TrimSpace(raw.ContentDetails.VideoID)
		if !textutil.ValidVideoID(id) {
			return nil, services.Wrap(services.ErrValidation, "catalog", "decode listing",
				fmt.Sprintf("%s: item %d has invalid video id %q", path, i, id), nil)
		}
		items = append(items, Item{
			VideoID:     id,
			Title:       textutil.NormalizeTitle(raw.Snippet.Title),
			PublishedAt: raw.ContentDetails.VideoPublishedAt,
			File:        path,
		})
	}
	return items, nil
}

// Load reads every *.json listing in dirs. Directories are visited in the
// given order and files in name order; an id seen twice keeps its first entry.
func Load(dirs []string) ([]Item, error) {
	var items []Item
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, services.Wrap(services.ErrNotFound, "catalog", "read dir", dir, err)
			}
			return nil, services.Wrap(services.ErrIO, "catalog", "read dir", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
				continue
			}
			fileItems, err := LoadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			for _, item := range fileItems {
				if _, dup := seen[item.VideoID]; dup {
					continue
				}
				seen[item.VideoID] = struct{}{}
				items = append(items, item)
			}
		}
	}
	return items, nil
}

// SkipUntil drops items before the first one whose id is fromID. An empty
// fromID keeps everything; an unknown id is ErrNotFound.
func SkipUntil(items []Item, fromID string) ([]Item, error) {
	if fromID == "" {
		return items, nil
	}
	idx := slices.IndexFunc(items, func(item Item) bool { return item.VideoID == fromID })
	if idx < 0 {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "resume", fmt.Sprintf("video %s is not in the catalog", fromID), nil)
	}
	return items[idx:], nil
}

// SortByPublished orders items oldest first, keeping load order for ties.
func SortByPublished(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.Before(items[j].PublishedAt) })
}

// Find returns the item with videoID.
func Find(items []Item, videoID string) (Item, bool) {
	idx := slices.IndexFunc(items, func(item Item) bool { return item.VideoID == videoID })
	if idx < 0 {
		return Item{}, false
	}
	return items[idx], true
}

// Filter excludes items by id or by title pattern.
type Filter struct {
	ids      map[string]struct{}
	patterns []*regexp.Regexp
}

// NewFilter compiles the exclusion rules.
func NewFilter(ids, patterns []string) (*Filter, error) {
	f := &Filter{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			f.ids[id] = struct{}{}
		}
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "catalog", "compile exclusion", pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Excluded reports whether item is filtered out and why.
func (f *Filter) Excluded(item Item) (bool, string) {
	if f == nil {
		return false, ""
	}
	if _, ok := f.ids[item.VideoID]; ok {
		return true, "excluded id"
	}
	for _, re := range f.patterns {
		if re.MatchString(item.Title) {
			return true, "title matches " + re.String()
		}
	}
	return false, ""
}

// Apply returns the items that are not excluded.
func (f *Filter) Apply(items []Item) []Item {
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if excluded, _ := f.Excluded(item); !excluded {
			kept = append(kept, item)
		}
	}
	return kept
}
