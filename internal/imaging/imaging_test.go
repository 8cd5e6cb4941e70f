package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"spriteforge/internal/services"
)

type mapResolver map[string]string

func (m mapResolver) PathFromURL(raw string) (string, bool) {
	path, ok := m[raw]
	return path, ok
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestGridFor(t *testing.T) {
	cases := []struct{ n, cols, rows int }{
		{0, 0, 0},
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{5, 3, 2},
		{7, 3, 3},
		{10, 4, 3},
	}
	for _, tc := range cases {
		cols, rows := GridFor(tc.n)
		if cols != tc.cols || rows != tc.rows {
			t.Fatalf("GridFor(%d) = %dx%d, want %dx%d", tc.n, cols, rows, tc.cols, tc.rows)
		}
	}
}

func TestTileSheetDimensionsAndTransparency(t *testing.T) {
	imgs := []image.Image{
		solid(32, 32, color.NRGBA{R: 255, A: 255}),
		solid(64, 32, color.NRGBA{G: 255, A: 255}),
		solid(16, 16, color.NRGBA{B: 255, A: 255}),
	}
	sheet, cols, rows, err := TileSheet(imgs, 64)
	if err != nil {
		t.Fatalf("TileSheet returned error: %v", err)
	}
	if cols != 2 || rows != 2 {
		t.Fatalf("grid = %dx%d, want 2x2", cols, rows)
	}
	if sheet.Bounds().Dx() != 128 || sheet.Bounds().Dy() != 128 {
		t.Fatalf("sheet size = %v", sheet.Bounds())
	}
	if got := sheet.NRGBAAt(96, 96); got.A != 0 {
		t.Fatalf("empty cell should be transparent, got %+v", got)
	}
	if got := sheet.NRGBAAt(32, 32); got.R < 250 || got.A < 250 {
		t.Fatalf("first cell should be red, got %+v", got)
	}
	if got := sheet.NRGBAAt(96, 4); got.A != 0 {
		t.Fatalf("letterboxed area of wide image should stay transparent, got %+v", got)
	}
	if _, _, _, err := TileSheet(nil, 64); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestPackCellKeepsHardEdges(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})

	dst := NewCanvas(16, 8)
	PackCell(dst, src, image.Rect(8, 0, 16, 4))

	if got := dst.NRGBAAt(11, 2); got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("left half should be pure red, got %+v", got)
	}
	if got := dst.NRGBAAt(12, 2); got != (color.NRGBA{B: 255, A: 255}) {
		t.Fatalf("right half should be pure blue, got %+v", got)
	}
	if got := dst.NRGBAAt(2, 2); got.A != 0 {
		t.Fatalf("outside the cell should be untouched, got %+v", got)
	}
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	a := Placeholder(64, 48, "generate.action", 7)
	b := Placeholder(64, 48, "generate.action", 7)
	c := Placeholder(64, 48, "generate.action", 8)
	if a.Bounds().Dx() != 64 || a.Bounds().Dy() != 48 {
		t.Fatalf("unexpected bounds %v", a.Bounds())
	}
	if string(a.Pix) != string(b.Pix) {
		t.Fatal("same inputs should render identical rasters")
	}
	if a.NRGBAAt(5, 5) == c.NRGBAAt(5, 5) {
		t.Fatal("different seeds should change the fill colour")
	}
}

func TestCircleMask(t *testing.T) {
	mask := CircleMask(32, 32)
	if mask.GrayAt(16, 16).Y != 255 {
		t.Fatal("centre should be opaque")
	}
	if mask.GrayAt(0, 0).Y != 0 {
		t.Fatal("corner should be clear")
	}
}

func TestFetchDataURLAndFileForms(t *testing.T) {
	src := solid(4, 4, color.NRGBA{G: 200, A: 255})
	dataURL, err := EncodeDataURL(src)
	if err != nil {
		t.Fatalf("EncodeDataURL returned error: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	if err := WritePNG(path, src); err != nil {
		t.Fatalf("WritePNG returned error: %v", err)
	}

	fetcher := NewFetcher(mapResolver{"http://local/files/frame.png": path})
	ctx := context.Background()
	for _, raw := range []string{dataURL, "file://" + path, path, "http://local/files/frame.png"} {
		img, err := fetcher.Fetch(ctx, raw)
		if err != nil {
			t.Fatalf("Fetch(%.40q) returned error: %v", raw, err)
		}
		if img.Bounds().Dx() != 4 {
			t.Fatalf("Fetch(%.40q) returned bounds %v", raw, img.Bounds())
		}
	}

	if _, err := fetcher.Fetch(ctx, "ftp://nowhere/x.png"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unsupported scheme, got %v", err)
	}
	if _, err := fetcher.Fetch(ctx, filepath.Join(dir, "missing.png")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestFetchRemote(t *testing.T) {
	data, err := EncodePNG(solid(3, 2, color.NRGBA{R: 1, A: 255}))
	if err != nil {
		t.Fatalf("EncodePNG returned error: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	fetcher := NewFetcher(nil, WithHTTPClient(srv.Client()))
	img, err := fetcher.Fetch(context.Background(), srv.URL+"/out.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, err := fetcher.Fetch(context.Background(), srv.URL+"/missing.png"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for 404, got %v", err)
	}
}

func TestWritePNGCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "sheets", "walk.png")
	if err := WritePNG(path, solid(2, 2, color.White)); err != nil {
		t.Fatalf("WritePNG returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file written: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}
