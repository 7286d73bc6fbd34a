package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var audioExts = []string{".mp3", ".wav", ".flac"}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	touch(t, filepath.Join(album, "02 - b.mp3"))
	touch(t, filepath.Join(album, "01 - a.FLAC"))
	touch(t, filepath.Join(album, "cover.jpg"))
	touch(t, filepath.Join(album, "disc2", "03 - c.mp3"))
	single := filepath.Join(root, "single.ogg")
	touch(t, single)
	missing := filepath.Join(root, "missing.mp3")

	got := Scan([]string{missing, album, single, missing}, audioExts)

	assert.Equal(t, []string{
		missing,
		filepath.Join(album, "01 - a.FLAC"),
		filepath.Join(album, "02 - b.mp3"),
		single,
		missing,
	}, got)
}

func TestScan_Empty(t *testing.T) {
	assert.Empty(t, Scan(nil, audioExts))
	assert.Empty(t, Scan([]string{t.TempDir()}, audioExts))
}

func TestDir_Missing(t *testing.T) {
	_, err := Dir(filepath.Join(t.TempDir(), "nope"), audioExts)
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"song.mp3", true},
		{"SONG.WAV", true},
		{"track.flac", true},
		{"notes.txt", false},
		{"mp3", false},
		{".mp3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.name, audioExts))
		})
	}
}
