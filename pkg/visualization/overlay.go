// Package visualization renders analysis results back onto the captured
// frame: the observed drop contour, the fitted theoretical contour and the
// apex position, saved as ordinary image files for inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"pendantdrop/internal/models"
)

// Default overlay colours: observed contour in red, fitted contour in
// green, apex marker in blue.
var (
	ObservedColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	FittedColor   = color.RGBA{R: 40, G: 200, B: 40, A: 255}
	ApexColor     = color.RGBA{R: 40, G: 80, B: 220, A: 255}
)

// Overlay draws analysis results over a base frame.
type Overlay struct {
	base image.Image
}

// NewOverlay creates an overlay renderer for the given frame.
func NewOverlay(base image.Image) *Overlay {
	return &Overlay{base: base}
}

// Render paints the observed contour, the fitted contour and an apex
// cross over a copy of the base frame. Either contour may be nil.
func (o *Overlay) Render(observed, fitted []models.Point2, apex image.Point) *image.RGBA {
	bounds := o.base.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, o.base, bounds.Min, draw.Src)

	for _, p := range observed {
		setPixel(out, int(p.X), int(p.Y), ObservedColor)
	}
	for _, p := range fitted {
		setPixel(out, int(p.X), int(p.Y), FittedColor)
	}
	drawCross(out, apex, 4, ApexColor)

	return out
}

// setPixel sets a pixel if it lies within the image bounds.
func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawCross draws a small axis-aligned cross centred on p.
func drawCross(img *image.RGBA, p image.Point, arm int, c color.RGBA) {
	for d := -arm; d <= arm; d++ {
		setPixel(img, p.X+d, p.Y, c)
		setPixel(img, p.X, p.Y+d, c)
	}
}

// Save writes an image to disk, choosing the codec from the file
// extension (.png, .jpg or .jpeg).
func Save(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return png.Encode(file, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("unsupported overlay format: %s", filepath.Ext(filename))
	}
}
