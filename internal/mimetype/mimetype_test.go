package mimetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"gemini", "index.gmi", "text/gemini"},
		{"gemini long extension", "page.gemini", "text/gemini"},
		{"nested path", "docs/guide/setup.gmi", "text/gemini"},
		{"plain text", "notes.txt", "text/plain"},
		{"image", "logo.png", "image/png"},
		{"uppercase extension", "PHOTO.JPG", "image/jpeg"},
		{"mixed case", "Chart.SvG", "image/svg+xml"},
		{"unknown extension", "data.xyz", Default},
		{"no extension", "README", Default},
		{"trailing dot", "odd.", Default},
		{"dot in directory only", "v1.2/binary", Default},
		{"hidden file with extension", ".config.toml", "text/plain"},
		{"empty path", "", Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.path))
		})
	}
}
