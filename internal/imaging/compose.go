package imaging

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// DefaultTileSize is the cell edge used for reference sheets.
const DefaultTileSize = 256

// NewCanvas returns a fully transparent RGBA canvas.
func NewCanvas(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

// PackCell scales src into cell on dst with nearest-neighbour sampling.
func PackCell(dst draw.Image, src image.Image, cell image.Rectangle) {
	draw.NearestNeighbor.Scale(dst, cell, src, src.Bounds(), draw.Over, nil)
}

// GridFor returns the column and row count for n tiles laid out square-ish.
func GridFor(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return cols, rows
}

// TileSheet lays imgs out row-major on a transparent canvas of tile-sized
// cells. Each image is fitted inside its cell preserving aspect ratio.
func TileSheet(imgs []image.Image, tile int) (*image.NRGBA, int, int, error) {
	if len(imgs) == 0 {
		return nil, 0, 0, errors.New("tile sheet: no images")
	}
	if tile <= 0 {
		tile = DefaultTileSize
	}
	cols, rows := GridFor(len(imgs))
	sheet := NewCanvas(cols*tile, rows*tile)
	for i, img := range imgs {
		origin := image.Pt((i%cols)*tile, (i/cols)*tile)
		cell := fitRect(img.Bounds(), tile).Add(origin)
		draw.ApproxBiLinear.Scale(sheet, cell, img, img.Bounds(), draw.Over, nil)
	}
	return sheet, cols, rows, nil
}

func fitRect(src image.Rectangle, tile int) image.Rectangle {
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, tile, tile)
	}
	scale := math.Min(float64(tile)/float64(w), float64(tile)/float64(h))
	fw := max(1, int(math.Round(float64(w)*scale)))
	fh := max(1, int(math.Round(float64(h)*scale)))
	x := (tile - fw) / 2
	y := (tile - fh) / 2
	return image.Rect(x, y, x+fw, y+fh)
}
