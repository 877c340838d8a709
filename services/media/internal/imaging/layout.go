package imaging

import (
	"image"
	"math"
)

// Placement is where a scaled source lands on the canvas.
type Placement struct {
	Scale   float64
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// Rect returns the destination rectangle on the canvas.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(p.OffsetX, p.OffsetY, p.OffsetX+p.Width, p.OffsetY+p.Height)
}

// Layout fits a srcW×srcH image inside a canvasW×canvasH frame, keeping its
// aspect ratio and centering it. Sources smaller than the canvas are scaled
// up. Scaled sides are rounded and clamped to [1, canvas side].
func Layout(srcW, srcH, canvasW, canvasH int) Placement {
	scale := math.Min(float64(canvasW)/float64(srcW), float64(canvasH)/float64(srcH))

	w := clamp(int(math.Round(float64(srcW)*scale)), 1, canvasW)
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, canvasH)

	return Placement{
		Scale:   scale,
		Width:   w,
		Height:  h,
		OffsetX: (canvasW - w) / 2,
		OffsetY: (canvasH - h) / 2,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
