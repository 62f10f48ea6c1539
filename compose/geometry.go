package compose

import (
	"fmt"
	"math"
	"strconv"
)

// Anchor names one of nine reference points on the canvas.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTop
	AnchorTopRight
	AnchorLeft
	AnchorCenter
	AnchorRight
	AnchorBottomLeft
	AnchorBottom
	AnchorBottomRight
)

// horizontal alignment: 0 left, 1 center, 2 right
func (a Anchor) hAlign() int { return int(a) % 3 }

// vertical alignment: 0 top, 1 center, 2 bottom
func (a Anchor) vAlign() int { return int(a) / 3 }

// SizeMode is the policy for computing a layer's rendered dimensions.
type SizeMode int

const (
	// SizeContain fits the layer inside the canvas, preserving aspect.
	SizeContain SizeMode = iota
	// SizeCover fills the canvas, preserving aspect, possibly overflowing.
	SizeCover
	// SizePixels scales into an explicit pixel box, preserving aspect.
	SizePixels
	// SizePercent scales into a box sized as a percentage of the canvas.
	SizePercent
	// SizeFitWidth matches the canvas width with automatic height.
	SizeFitWidth
	// SizeFitHeight matches the canvas height with automatic width.
	SizeFitHeight
	// SizeScale multiplies the source dimensions by explicit factors.
	SizeScale
)

// sizing holds the mode plus its mode-specific parameters.
type sizing struct {
	Mode     SizeMode
	Width    int
	Height   int
	PercentW float64
	PercentH float64
	ScaleX   float64
	ScaleY   float64
}

// scaleSpec returns the scale filter arguments for the layer's sizing at
// the given canvas, plus the target box dimensions when the mode defines an
// explicit box (percent mode only; other modes position by rendered size).
func (s sizing) scaleSpec(canvasW, canvasH int) (spec string, boxW, boxH int, hasBox bool) {
	switch s.Mode {
	case SizePixels:
		return fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", s.Width, s.Height), 0, 0, false

	case SizePercent:
		pw := s.PercentW
		ph := s.PercentH
		if pw <= 0 {
			pw = 100
		}
		if ph <= 0 {
			ph = 100
		}
		boxW = int(math.Floor(float64(canvasW) * pw / 100))
		boxH = int(math.Floor(float64(canvasH) * ph / 100))
		return fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", boxW, boxH), boxW, boxH, true

	case SizeCover:
		return fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", canvasW, canvasH), 0, 0, false

	case SizeFitWidth:
		return fmt.Sprintf("%d:-1", canvasW), 0, 0, false

	case SizeFitHeight:
		return fmt.Sprintf("-1:%d", canvasH), 0, 0, false

	case SizeScale:
		sx := s.ScaleX
		sy := s.ScaleY
		if sx <= 0 {
			sx = 1
		}
		if sy <= 0 {
			sy = sx
		}
		return fmt.Sprintf("iw*%g:ih*%g", sx, sy), 0, 0, false

	case SizeContain:
		fallthrough
	default:
		return fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", canvasW, canvasH), 0, 0, false
	}
}

// placement computes the overlay x/y expressions for an anchor plus pixel
// offset. Non-percent modes position by the overlay's rendered size (W/w,
// H/h in overlay-filter terms). Percent mode positions the target box on
// the canvas numerically, then aligns the rendered content inside the box
// per the anchor, since aspect-preserving scale can leave the content
// smaller than the box.
func placement(anchor Anchor, dx, dy, canvasW, canvasH, boxW, boxH int, hasBox bool) (x, y string) {
	if !hasBox {
		switch anchor.hAlign() {
		case 0:
			x = addOffset("0", dx)
		case 1:
			x = addOffset("(W-w)/2", dx)
		default:
			x = addOffset("W-w", dx)
		}
		switch anchor.vAlign() {
		case 0:
			y = addOffset("0", dy)
		case 1:
			y = addOffset("(H-h)/2", dy)
		default:
			y = addOffset("H-h", dy)
		}
		return x, y
	}

	var boxX, boxY int
	switch anchor.hAlign() {
	case 0:
		boxX = 0
	case 1:
		boxX = (canvasW - boxW) / 2
	default:
		boxX = canvasW - boxW
	}
	switch anchor.vAlign() {
	case 0:
		boxY = 0
	case 1:
		boxY = (canvasH - boxH) / 2
	default:
		boxY = canvasH - boxH
	}
	boxX += dx
	boxY += dy

	switch anchor.hAlign() {
	case 0:
		x = strconv.Itoa(boxX)
	case 1:
		x = fmt.Sprintf("%d+(%d-w)/2", boxX, boxW)
	default:
		x = fmt.Sprintf("%d+%d-w", boxX, boxW)
	}
	switch anchor.vAlign() {
	case 0:
		y = strconv.Itoa(boxY)
	case 1:
		y = fmt.Sprintf("%d+(%d-h)/2", boxY, boxH)
	default:
		y = fmt.Sprintf("%d+%d-h", boxY, boxH)
	}
	return x, y
}

func addOffset(expr string, off int) string {
	if off == 0 {
		return expr
	}
	if expr == "0" {
		return strconv.Itoa(off)
	}
	if off < 0 {
		return fmt.Sprintf("%s-%d", expr, -off)
	}
	return fmt.Sprintf("%s+%d", expr, off)
}
