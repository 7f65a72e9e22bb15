package watermark

import (
	"fmt"
	"image/color"
	"strings"
)

// Config describes a text watermark. An empty Text disables the stage.
type Config struct {
	Text string
	// Opacity in percent, 0-100.
	Opacity int
	Color   string
	// FontFile is a TrueType/OpenType file; empty uses the bundled Go font.
	FontFile string
	// Size is the text height in percent of the frame height, 1-100.
	Size int
	// Rotation in degrees: 0, 45, or -45.
	Rotation int
	Tile     bool
}

// Defaults applied when a field is zero.
const (
	DefaultOpacity = 50
	DefaultSize    = 5
	DefaultColor   = "white"
)

var palette = map[string]color.NRGBA{
	"white":  {R: 255, G: 255, B: 255},
	"black":  {R: 0, G: 0, B: 0},
	"red":    {R: 255, G: 0, B: 0},
	"blue":   {R: 0, G: 0, B: 255},
	"yellow": {R: 255, G: 255, B: 0},
	"green":  {R: 0, G: 128, B: 0},
}

// Colors lists the accepted colour names.
func Colors() []string {
	return []string{"white", "black", "red", "blue", "yellow", "green"}
}

// Enabled reports whether a watermark should be applied.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Text) != ""
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Color == "" {
		c.Color = DefaultColor
	}
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	return c
}

// Validate checks ranges and enums. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Opacity < 0 || c.Opacity > 100 {
		return fmt.Errorf("watermark opacity %d outside 0-100", c.Opacity)
	}
	if c.Size < 1 || c.Size > 100 {
		return fmt.Errorf("watermark size %d outside 1-100", c.Size)
	}
	if _, ok := palette[strings.ToLower(c.Color)]; !ok {
		return fmt.Errorf("watermark color %q not one of %s", c.Color, strings.Join(Colors(), ", "))
	}
	switch c.Rotation {
	case 0, 45, -45:
	default:
		return fmt.Errorf("watermark rotation %d not one of 0, 45, -45", c.Rotation)
	}
	return nil
}

// RGBA returns the text colour with the configured opacity applied.
func (c Config) RGBA() color.NRGBA {
	col, ok := palette[strings.ToLower(c.Color)]
	if !ok {
		col = palette[DefaultColor]
	}
	col.A = uint8(255 * c.Opacity / 100)
	return col
}
