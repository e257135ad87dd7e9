package mimetypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOneOf(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		want     bool
	}{
		{"PNG", "image/png", true},
		{"JPEG", "image/jpeg", true},
		{"GIF", "image/gif", true},
		{"WebP", "image/webp", true},
		{"SVG is refused", "image/svg+xml", false},
		{"Plain text", "text/plain; charset=utf-8", false},
		{"Binary", "application/octet-stream", false},
		{"Invalid MIME", "not a mime", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, OneOf(tt.detected, ProfilePhotos...))
		})
	}
}

func TestParse(t *testing.T) {
	req := require.New(t)
	req.Equal(ImagePNG, Parse("image/png; charset=binary"))
	req.Equal(Unknown, Parse(""))
}
