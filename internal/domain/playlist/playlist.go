// Package playlist provides the Playlist domain entity.
package playlist

// Playlist is an append-only, insertion-ordered list of track paths.
// Duplicates are allowed. It is not safe for concurrent use; the owning
// session serializes access.
type Playlist struct {
	paths []string
}

// New creates a playlist holding paths.
func New(paths ...string) *Playlist {
	p := &Playlist{paths: make([]string, 0, len(paths))}
	p.Append(paths...)
	return p
}

// Append adds paths to the end in the given order and returns how many were added.
func (p *Playlist) Append(paths ...string) int {
	p.paths = append(p.paths, paths...)
	return len(paths)
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.paths)
}

// IsEmpty reports whether the playlist has no entries.
func (p *Playlist) IsEmpty() bool {
	return len(p.paths) == 0
}

// Valid reports whether i is a position in the playlist.
func (p *Playlist) Valid(i int) bool {
	return i >= 0 && i < len(p.paths)
}

// At returns the path at position i.
func (p *Playlist) At(i int) (string, bool) {
	if !p.Valid(i) {
		return "", false
	}
	return p.paths[i], true
}

// Next returns the position after i, wrapping to the first entry.
// With no current position (i < 0) it returns 0.
func (p *Playlist) Next(i int) int {
	if len(p.paths) == 0 {
		return -1
	}
	if i < 0 {
		return 0
	}
	return (i + 1) % len(p.paths)
}

// Previous returns the position before i, wrapping to the last entry.
// With no current position (i < 0) it returns the last entry.
func (p *Playlist) Previous(i int) int {
	n := len(p.paths)
	if n == 0 {
		return -1
	}
	if i < 0 {
		return n - 1
	}
	return ((i-1)%n + n) % n
}

// Paths returns a copy of all entries.
func (p *Playlist) Paths() []string {
	result := make([]string, len(p.paths))
	copy(result, p.paths)
	return result
}
