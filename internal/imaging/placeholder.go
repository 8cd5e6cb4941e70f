package imaging

import (
	"hash/fnv"
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder renders a flat, labelled raster whose colour is a pure function
// of label and seed.
func Placeholder(width, height int, label string, seed int64) *image.NRGBA {
	img := NewCanvas(width, height)
	fill := paletteColor(label, seed)
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	border := color.NRGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 255}
	for x := 0; x < width; x++ {
		img.SetNRGBA(x, 0, border)
		img.SetNRGBA(x, height-1, border)
	}
	for y := 0; y < height; y++ {
		img.SetNRGBA(0, y, border)
		img.SetNRGBA(width-1, y, border)
	}

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	lineHeight := face.Metrics().Height.Ceil()
	lines := []string{label, "seed " + strconv.FormatInt(seed, 10)}
	y := (height-lineHeight*len(lines))/2 + face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		advance := drawer.MeasureString(line).Ceil()
		drawer.Dot = fixed.P(max(2, (width-advance)/2), y)
		drawer.DrawString(line)
		y += lineHeight
	}
	return img
}

// CircleMask returns an opaque-white disc on black, centred and touching the
// shorter edge.
func CircleMask(width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/2, float64(height)/2
	r := float64(min(width, height)) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}

func paletteColor(label string, seed int64) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	_, _ = h.Write([]byte(strconv.FormatInt(seed, 10)))
	sum := h.Sum32()
	return color.NRGBA{
		R: 64 + uint8(sum&0x7f),
		G: 64 + uint8((sum>>8)&0x7f),
		B: 64 + uint8((sum>>16)&0x7f),
		A: 255,
	}
}
