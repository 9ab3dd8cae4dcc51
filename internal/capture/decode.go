package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FrameExtensions lists decodable frame file extensions.
var FrameExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsFrameFile reports whether path has a decodable extension.
func IsFrameFile(path string) bool {
	return slices.Contains(FrameExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadFrame decodes one frame file.
func LoadFrame(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // frame paths come from the configured source
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
