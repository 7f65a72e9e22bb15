package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/google/renameio/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// Tile spacing factors relative to the text box.
const (
	tileGapX        = 0.8
	tileGapY        = 2.0
	tileGapYRotated = 1.5
)

// Render draws cfg onto a transparent width x height canvas.
func Render(cfg Config, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", width, height)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	if !cfg.Enabled() {
		return canvas, nil
	}

	face, err := loadFace(cfg.FontFile, float64(height)*float64(cfg.Size)/100)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	text, textW, textH := renderText(face, cfg)
	stamp := text
	if cfg.Rotation != 0 {
		stamp = rotate(text, float64(cfg.Rotation))
	}
	sw, sh := stamp.Bounds().Dx(), stamp.Bounds().Dy()

	if !cfg.Tile {
		at := image.Pt((width-sw)/2, (height-sh)/2)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(image.Pt(sw, sh))}, stamp, image.Point{}, draw.Over)
		return canvas, nil
	}

	gapY := tileGapY
	if cfg.Rotation != 0 {
		gapY = tileGapYRotated
	}
	stepX := max(1, int(math.Round(float64(textW)*(1+tileGapX))))
	stepY := max(1, int(math.Round(float64(textH)*(1+gapY))))
	for row, y := 0, -sh/2; y < height; row, y = row+1, y+stepY {
		x := -sw / 2
		if row%2 == 1 {
			x += stepX / 2
		}
		for ; x < width; x += stepX {
			at := image.Pt(x, y)
			draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(image.Pt(sw, sh))}, stamp, image.Point{}, draw.Over)
		}
	}
	return canvas, nil
}

// WritePNG renders cfg and writes the PNG atomically to path.
func WritePNG(cfg Config, width, height int, path string) error {
	img, err := Render(cfg, width, height)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}

func loadFace(fontFile string, size float64) (font.Face, error) {
	data := goregular.TTF
	if fontFile != "" {
		raw, err := os.ReadFile(fontFile)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		data = raw
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", fontFile, err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    max(size, 1),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// renderText draws the text on a tight transparent box.
func renderText(face font.Face, cfg Config) (*image.NRGBA, int, int) {
	metrics := face.Metrics()
	w := max(1, font.MeasureString(face, cfg.Text).Ceil())
	h := max(1, (metrics.Ascent + metrics.Descent).Ceil())
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(cfg.RGBA()),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(cfg.Text)
	return img, w, h
}

// rotate turns src counter-clockwise by degrees around its centre onto a
// square canvas large enough to hold every corner.
func rotate(src *image.NRGBA, degrees float64) *image.NRGBA {
	w, h := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())
	side := int(math.Ceil(math.Hypot(w, h)))
	dst := image.NewNRGBA(image.Rect(0, 0, side, side))

	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx, cy := w/2, h/2
	dx, dy := float64(side)/2, float64(side)/2
	// Screen y grows downward, so a visual counter-clockwise turn negates sin.
	m := f64.Aff3{
		cos, sin, dx - cos*cx - sin*cy,
		-sin, cos, dy + sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, src, src.Bounds(), draw.Over, nil)
	return dst
}
