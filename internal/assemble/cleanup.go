package assemble

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trend-reel/internal/day"
)

// CleanupOldVideos removes the published videos of the same group as
// current, keeping current itself. It returns the removed paths.
func CleanupOldVideos(current string) ([]string, error) {
	dir, name := filepath.Split(current)
	if len(name) <= len(day.Layout)+1 || name[len(day.Layout)] != '_' || !day.Valid(name[:len(day.Layout)]) {
		return nil, nil
	}
	suffix := name[len(day.Layout):]

	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == name || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if !day.Valid(strings.TrimSuffix(e.Name(), suffix)) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// CleanupDateDirs keeps the keep newest dated directories under videoDir and
// removes the rest. Directories that are not named by a date are left alone.
func CleanupDateDirs(videoDir string, keep int) ([]string, error) {
	entries, err := os.ReadDir(videoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dated []string
	for _, e := range entries {
		if e.IsDir() && day.Valid(e.Name()) {
			dated = append(dated, e.Name())
		}
	}
	if len(dated) <= keep {
		return nil, nil
	}
	sort.Strings(dated)

	var removed []string
	for _, d := range dated[:len(dated)-keep] {
		p := filepath.Join(videoDir, d)
		if err := os.RemoveAll(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}
