// Package tags reads track metadata from audio files.
package tags

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sdplayer/internal/domain/track"
)

// ProbeFunc returns the duration of an audio file.
type ProbeFunc func(path string) (time.Duration, error)

// Reader reads duration and tag metadata.
type Reader struct {
	probe ProbeFunc
}

// NewReader creates a reader that measures durations with probe.
func NewReader(probe ProbeFunc) *Reader {
	return &Reader{probe: probe}
}

// Read returns the track at path. Missing tags fall back to the defaults of
// track.New; a file whose duration cannot be measured is an error.
func (r *Reader) Read(path string) (track.Track, error) {
	t := track.New(path)

	d, err := r.probe(path)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to read duration of %s", path)
	}
	t.Duration = d

	artist, album, err := readTags(path)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			zlog.Warn().Msgf("tags: failed to read tags: path=%s: %v", path, err)
		}
		return t, nil
	}
	if artist != "" {
		t.Artist = artist
	}
	if album != "" {
		t.Album = album
	}
	return t, nil
}

func readTags(path string) (artist, album string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(m.Artist()), strings.TrimSpace(m.Album()), nil
}
