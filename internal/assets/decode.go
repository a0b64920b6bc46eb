package assets

import (
	"bytes"
	"image"
	"path"
	"strings"

	// Frame formats.
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether p has a supported frame extension.
func IsImage(p string) bool {
	return imageExts[strings.ToLower(path.Ext(p))]
}

// Decode decodes a png, webp or bmp frame.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// DecodeConfig reads only the frame header.
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}
