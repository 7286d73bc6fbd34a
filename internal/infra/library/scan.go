// Package library expands command-line and dialog selections into track paths.
package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Scan expands paths in order. Files are returned as given without being
// checked; directories contribute their direct entries whose extension is
// in exts, sorted by name. A path that cannot be inspected is kept as a file.
func Scan(paths []string, exts []string) []string {
	var result []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			result = append(result, p)
			continue
		}

		files, err := Dir(p, exts)
		if err != nil {
			zlog.Warn().Msgf("library: %v", err)
			continue
		}
		result = append(result, files...)
	}
	return result
}

// Dir lists the audio files directly inside dir, sorted by name.
func Dir(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !Match(e.Name(), exts) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	zlog.Debug().Msgf("library: scanned: dir=%s files=%d", dir, len(files))
	return files, nil
}

// Match reports whether name has one of exts, ignoring case.
func Match(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
