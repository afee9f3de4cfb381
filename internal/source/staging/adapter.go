package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/source"
)

const (
	// ManifestFileName is the optional JSONL file carrying per-image hints.
	ManifestFileName = "manifest.jsonl"
	// DefaultPattern matches the image types the upload path accepts.
	DefaultPattern = "**/*.{png,jpg,jpeg,gif,webp,PNG,JPG,JPEG,GIF,WEBP}"
)

// ManifestItem represents a line of manifest.jsonl.
type ManifestItem struct {
	Filename   string `json:"filename"` // relative to the staging root
	PopCulture string `json:"popCulture"`
	Characters string `json:"characters"`
	Notes      string `json:"notes"`
}

// Adapter implements source.Source over a directory of images.
type Adapter struct {
	fs       afero.Fs
	pattern  string
	sourceID string
	items    []source.Item
	loaded   bool
}

// NewAdapter creates a staging adapter rooted at basePath.
// Parameters:
//   - basePath: directory holding the images.
//   - pattern: doublestar glob relative to basePath; empty uses DefaultPattern.
//
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath, pattern string) *Adapter {
	return NewAdapterFs(afero.NewBasePathFs(afero.NewOsFs(), basePath), path.Base(basePath), pattern)
}

// NewAdapterFs creates a staging adapter over fsys.
func NewAdapterFs(fsys afero.Fs, sourceID, pattern string) *Adapter {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Adapter{fs: fsys, pattern: pattern, sourceID: sourceID}
}

// GetSourceID returns the source identifier with a "staging:" prefix.
func (a *Adapter) GetSourceID() string {
	return "staging:" + a.sourceID
}

// FetchBatch returns items in path order. The cursor is an index.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.Item, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load staging items: %w", err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if start >= len(a.items) {
		return []source.Item{}, "", nil
	}
	end := start + limit
	if limit <= 0 || end > len(a.items) {
		end = len(a.items)
	}

	next := ""
	if end < len(a.items) {
		next = strconv.Itoa(end)
	}
	return a.items[start:end], next, nil
}

// ReadFile returns the bytes of item.
func (a *Adapter) ReadFile(ctx context.Context, item source.Item) ([]byte, error) {
	return afero.ReadFile(a.fs, item.Path)
}

// Len returns the number of matched images. It loads the listing if needed.
func (a *Adapter) Len() (int, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) loadItems() error {
	hints, err := a.loadManifest()
	if err != nil {
		return err
	}

	matches, err := doublestar.Glob(afero.NewIOFS(a.fs), a.pattern)
	if err != nil {
		return fmt.Errorf("glob %q: %w", a.pattern, err)
	}
	sort.Strings(matches)

	a.items = make([]source.Item, 0, len(matches))
	for _, m := range matches {
		info, err := a.fs.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		a.items = append(a.items, source.Item{
			SourceID: a.sourceID + ":" + m,
			Path:     m,
			Filename: path.Base(m),
			Context:  hints[m],
		})
	}
	return nil
}

// loadManifest reads the optional manifest. Malformed lines are skipped.
func (a *Adapter) loadManifest() (map[string]domain.MemeContext, error) {
	hints := make(map[string]domain.MemeContext)
	f, err := a.fs.Open(ManifestFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return hints, nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil || item.Filename == "" {
			continue
		}
		hints[path.Clean(strings.TrimPrefix(item.Filename, "/"))] = domain.MemeContext{
			PopCulture: item.PopCulture,
			Characters: item.Characters,
			Notes:      item.Notes,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return hints, nil
}

