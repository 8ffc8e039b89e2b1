package ocrengine

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Normalize returns img unchanged when it is PNG or JPEG, and re-encodes
// other decodable formats (GIF, BMP, TIFF, WebP) as PNG. Undecodable input
// is returned as-is together with an empty format name.
func Normalize(img []byte) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return img, "", nil
	}
	switch format {
	case "png", "jpeg":
		return img, format, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, format, fmt.Errorf("ocrengine: decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, format, fmt.Errorf("ocrengine: encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}
