package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylist_Append(t *testing.T) {
	tests := []struct {
		name     string
		batches  [][]string
		expected []string
	}{
		{
			name:     "no batches",
			batches:  nil,
			expected: []string{},
		},
		{
			name:     "empty batch",
			batches:  [][]string{{}},
			expected: []string{},
		},
		{
			name:     "call then argument order",
			batches:  [][]string{{"a.mp3", "b.mp3"}, {"c.mp3"}},
			expected: []string{"a.mp3", "b.mp3", "c.mp3"},
		},
		{
			name:     "duplicates kept",
			batches:  [][]string{{"a.mp3"}, {"a.mp3", "a.mp3"}},
			expected: []string{"a.mp3", "a.mp3", "a.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			total := 0
			for _, batch := range tt.batches {
				total += p.Append(batch...)
			}

			assert.Equal(t, len(tt.expected), p.Len())
			assert.Equal(t, total, p.Len())
			assert.Equal(t, tt.expected, p.Paths())
		})
	}
}

func TestPlaylist_At(t *testing.T) {
	p := New("a.mp3", "b.mp3")

	path, ok := p.At(1)
	require.True(t, ok)
	assert.Equal(t, "b.mp3", path)

	_, ok = p.At(2)
	assert.False(t, ok)
	_, ok = p.At(-1)
	assert.False(t, ok)
}

func TestPlaylist_NextPrevious(t *testing.T) {
	p := New("a.mp3", "b.mp3", "c.mp3")

	tests := []struct {
		name     string
		from     int
		next     int
		previous int
	}{
		{name: "no selection", from: -1, next: 0, previous: 2},
		{name: "first", from: 0, next: 1, previous: 2},
		{name: "middle", from: 1, next: 2, previous: 0},
		{name: "last", from: 2, next: 0, previous: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.next, p.Next(tt.from))
			assert.Equal(t, tt.previous, p.Previous(tt.from))
		})
	}
}

func TestPlaylist_NextCyclesBack(t *testing.T) {
	for n := 1; n <= 5; n++ {
		paths := make([]string, n)
		p := New(paths...)
		for start := 0; start < n; start++ {
			i := start
			for k := 0; k < n; k++ {
				i = p.Next(i)
			}
			assert.Equal(t, start, i, "n=%d start=%d", n, start)
			assert.Equal(t, start, p.Previous(p.Next(start)))
		}
	}
}

func TestPlaylist_Empty(t *testing.T) {
	p := New()

	assert.True(t, p.IsEmpty())
	assert.Equal(t, -1, p.Next(-1))
	assert.Equal(t, -1, p.Previous(-1))
	assert.False(t, p.Valid(0))
}

func TestPlaylist_PathsIsCopy(t *testing.T) {
	p := New("a.mp3")
	paths := p.Paths()
	paths[0] = "changed.mp3"

	path, _ := p.At(0)
	assert.Equal(t, "a.mp3", path)
}
