package fetch

import (
	"bytes"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Magic prefixes for formats the stdlib image registry cannot decode.
var (
	webpRIFF = []byte("RIFF")
	webpTag  = []byte("WEBP")
	bmpMagic = []byte("BM")
)

// ValidImage reports whether path holds a decodable (or at least
// recognisable) image. Corrupted downloads are discarded before they count
// toward a target.
func ValidImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil || n < len(bmpMagic) {
		return fmt.Errorf("read image header %s: short or unreadable", path)
	}
	header = header[:n]

	if bytes.HasPrefix(header, bmpMagic) {
		return nil
	}
	if len(header) >= 12 && bytes.HasPrefix(header, webpRIFF) && bytes.Equal(header[8:12], webpTag) {
		return nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind image %s: %w", path, err)
	}
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("decode image %s: %w", path, err)
	}
	return nil
}
