package batch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/testutil"
)

// makeTree creates:
//
//	root/a.png root/b.jpg root/notes.txt root/skip_me.png
//	root/sub/c.png root/sub/deeper/d.webp
func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{
		"a.png", "b.jpg", "notes.txt", "skip_me.png",
		filepath.Join("sub", "c.png"),
		filepath.Join("sub", "deeper", "d.webp"),
	} {
		testutil.WriteFile(t, filepath.Join(root, name), []byte("x"))
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestDiscoverImageFiles(t *testing.T) {
	root := makeTree(t)

	tests := []struct {
		name      string
		recursive bool
		include   []string
		exclude   []string
		want      []string
	}{
		{
			name:      "recursive",
			recursive: true,
			want:      []string{"a.png", "b.jpg", "skip_me.png", "sub/c.png", "sub/deeper/d.webp"},
		},
		{
			name: "top level only",
			want: []string{"a.png", "b.jpg", "skip_me.png"},
		},
		{
			name:      "include",
			recursive: true,
			include:   []string{"*.png"},
			want:      []string{"a.png", "skip_me.png", "sub/c.png"},
		},
		{
			name:      "exclude wins",
			recursive: true,
			include:   []string{"*.png"},
			exclude:   []string{"skip_*"},
			want:      []string{"a.png", "sub/c.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := discoverImageFiles([]string{root}, tt.recursive, tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(t, root, files))
		})
	}
}

func TestDiscoverImageFiles_ExplicitFiles(t *testing.T) {
	root := makeTree(t)
	notes := filepath.Join(root, "notes.txt")
	a := filepath.Join(root, "a.png")

	// explicitly named files are kept even without an image extension
	files, err := discoverImageFiles([]string{notes, a}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{notes, a}, files)

	files, err = discoverImageFiles([]string{notes, a}, false, nil, []string{"*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)
}

func TestDiscoverImageFiles_Missing(t *testing.T) {
	_, err := discoverImageFiles([]string{"/does/not/exist"}, true, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMatchesAnyPattern(t *testing.T) {
	assert.False(t, matchesAnyPattern("/x/a.png", nil))
	assert.True(t, matchesAnyPattern("/x/a.png", []string{"*.jpg", "a.*"}))
	assert.False(t, matchesAnyPattern("/x/a.png", []string{"x/*"}))
	assert.False(t, matchesAnyPattern("/x/a.png", []string{"[bad"}))
}

func TestShouldIncludeFile(t *testing.T) {
	assert.True(t, shouldIncludeFile("a.png", nil, nil))
	assert.False(t, shouldIncludeFile("a.png", nil, []string{"a.*"}))
	assert.False(t, shouldIncludeFile("a.png", []string{"*.jpg"}, nil))
	assert.True(t, shouldIncludeFile("a.jpg", []string{"*.jpg"}, nil))
}
