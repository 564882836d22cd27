package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ListPhotos returns the image files directly inside dir whose extension is
// in exts (case-insensitive), ordered by file name.
func ListPhotos(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("photos: read %s: %w", dir, err)
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = struct{}{}
	}

	var photos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		photos = append(photos, filepath.Join(dir, entry.Name()))
	}
	return photos, nil
}
