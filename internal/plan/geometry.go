package plan

import (
	"fmt"
	"math"
	"strings"

	"slidecast/internal/media"
)

// Position anchors the picture-in-picture overlay in the frame.
type Position string

const (
	PositionCenter      Position = "center"
	PositionUpperLeft   Position = "upper-left"
	PositionUpperRight  Position = "upper-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// Scale bounds in percent of the output height.
const (
	MinScale     = 5
	MaxScale     = 100
	DefaultScale = 50
)

var overlayExpressions = map[Position][2]string{
	PositionCenter:      {"(main_w-overlay_w)/2", "(main_h-overlay_h)/2"},
	PositionUpperLeft:   {"0", "0"},
	PositionUpperRight:  {"main_w-overlay_w", "0"},
	PositionBottomLeft:  {"0", "main_h-overlay_h"},
	PositionBottomRight: {"main_w-overlay_w", "main_h-overlay_h"},
}

// ParsePosition accepts position names with spaces, dashes, or underscores.
func ParsePosition(value string) (Position, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)
	if normalized == "" {
		return PositionCenter, true
	}
	p := Position(normalized)
	_, ok := overlayExpressions[p]
	return p, ok
}

// Geometry is the resolved overlay rectangle in output pixels.
type Geometry struct {
	Position Position
	Width    int
	Height   int
	// X and Y are the pixel offsets of the top-left corner.
	X int
	Y int
}

// OverlayX returns the overlay filter x expression.
func (g Geometry) OverlayX() string {
	return overlayExpressions[g.Position][0]
}

// OverlayY returns the overlay filter y expression.
func (g Geometry) OverlayY() string {
	return overlayExpressions[g.Position][1]
}

// Fits reports whether the rectangle lies inside the frame.
func (g Geometry) Fits(frameW, frameH int) bool {
	return g.Width > 0 && g.Height > 0 && g.Width <= frameW && g.Height <= frameH
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d at %s", g.Width, g.Height, g.Position)
}

// ComputeGeometry sizes the overlay to scale percent of the frame height and
// the video's display aspect ratio, after rotation. Both sides are rounded to
// even values.
func ComputeGeometry(video media.VideoStream, scale int, position Position, frameW, frameH int) Geometry {
	aspect := video.DisplayAspect
	if aspect <= 0 && video.Width > 0 && video.Height > 0 {
		aspect = float64(video.Width) / float64(video.Height)
	}
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	if video.Rotated() {
		aspect = 1 / aspect
	}
	height := float64(frameH) * float64(scale) / 100
	width := height * aspect
	g := Geometry{
		Position: position,
		Width:    roundEven(width),
		Height:   roundEven(height),
	}
	switch position {
	case PositionUpperRight:
		g.X = frameW - g.Width
	case PositionBottomLeft:
		g.Y = frameH - g.Height
	case PositionBottomRight:
		g.X, g.Y = frameW-g.Width, frameH-g.Height
	case PositionCenter:
		g.X, g.Y = (frameW-g.Width)/2, (frameH-g.Height)/2
	}
	return g
}

func roundEven(v float64) int {
	return int(math.Round(v/2)) * 2
}
