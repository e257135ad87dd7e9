package mimetypes

import "mime"

type MIME string

const (
	Unknown MIME = "unknown"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
)

// ProfilePhotos lists the media types accepted as profile pictures.
var ProfilePhotos = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWebP}

// Parse strips parameters from a detected media type.
func Parse(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

// OneOf reports whether detected is one of the allowed types.
func OneOf(detected string, allowed ...MIME) bool {
	mt := Parse(detected)
	for _, a := range allowed {
		if mt == a {
			return true
		}
	}
	return false
}
