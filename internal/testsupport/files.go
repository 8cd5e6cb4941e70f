package testsupport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"spriteforge/internal/imaging"
)

// WriteImage writes a solid w x h PNG at path, creating parent directories,
// and returns path.
func WriteImage(t testing.TB, path string, w, h int, c color.Color) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	if err := imaging.WritePNG(path, img); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
