// Package imageformat registers every image decoder the service accepts and
// exposes the accepted format set.
package imageformat

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "github.com/sergeymakinen/go-ico"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Accepted lists the upload formats allowed past validation. RAW and PDF
// have no registered decoder, so uploads in those formats never decode.
var Accepted = []string{"JPEG", "PNG", "GIF", "BMP", "WEBP", "RAW", "ICO", "PDF", "TIFF"}

var aliases = map[string]string{
	"JPG": "JPEG",
	"TIF": "TIFF",
}

// IsAccepted reports whether a format name returned by image.Decode is in
// the accepted set. The comparison is case-insensitive.
func IsAccepted(format string) bool {
	name := strings.ToUpper(format)
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	for _, f := range Accepted {
		if f == name {
			return true
		}
	}
	return false
}

// Decode fully decodes data and returns the image with its format name.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// DecodeConfig reads only the header of data. Icon sizes come from the
// embedded PNG or DIB header, never from the directory entry, which caps
// at 256.
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}
