package layout

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dsvg"

	"openf1companion/pkg/circuit"
)

const (
	ScaleSVG = 0.75
	margin   = 240

	// corner markers are drawn at a fixed on-track radius so they stay
	// visible at any circuit size
	cornerMarkerRadius = 60
)

var mu = sync.Mutex{}

// SvgMetadata is appended to the SVG as an XML comment so the live map
// page can transform telemetry coordinates into image coordinates.
type SvgMetadata struct {
	MinX    float64 `json:"minX"`
	MaxX    float64 `json:"maxX"`
	OffsetX float64 `json:"offsetX"`
	MinY    float64 `json:"minY"`
	MaxY    float64 `json:"maxY"`
	OffsetY float64 `json:"offsetY"`
	Rotate  bool    `json:"rotate"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func getTrackSize(outline []circuit.Point, scaleFactor float64) (SvgMetadata, image.Rectangle) {
	maxX := math.Inf(-1)
	maxY := math.Inf(-1)
	minX := math.Inf(1)
	minY := math.Inf(1)
	for _, p := range outline {
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
	}

	offsetX := minX - margin
	minX = minX - offsetX + (margin / 2)
	maxX = maxX - offsetX + (margin / 2)

	offsetY := minY - margin
	minY = minY - offsetY + (margin / 2)
	maxY = maxY - offsetY + (margin / 2)

	maxX = maxX * (1.0 - scaleFactor)
	maxY = maxY * (1.0 - scaleFactor)
	minX = minX * (1.0 - scaleFactor)
	minY = minY * (1.0 - scaleFactor)
	offsetX = offsetX * (1.0 - scaleFactor)
	offsetY = offsetY * (1.0 - scaleFactor)

	width := maxX
	height := maxY
	rotate := false
	if width < height {
		rotate = true
		height = maxX
		width = maxY
	}

	meta := SvgMetadata{
		MinX:    minX,
		MaxX:    maxX,
		OffsetX: -offsetX,
		MinY:    minY,
		MaxY:    maxY,
		OffsetY: -offsetY,
		Rotate:  rotate,
		Width:   width,
		Height:  height,
	}
	return meta, image.Rect(0, 0, int(width), int(height))
}

// BuildCircuitSVG renders the circuit outline and its corner markers to
// an SVG file and appends the coordinate metadata as an XML comment.
func BuildCircuitSVG(path string, l *circuit.Layout) error {
	mu.Lock()
	defer mu.Unlock()

	meta, rect := getTrackSize(l.Outline, ScaleSVG)

	dest := draw2dsvg.NewSvg()
	gc := draw2dsvg.NewGraphicContext(dest)

	drawOutline(gc, l.Outline, meta, rect, ScaleSVG)
	drawCorners(gc, l.Corners, meta, rect, ScaleSVG)

	if err := draw2dsvg.SaveToSvgFile(path, dest); err != nil {
		return err
	}
	return appendMetadata(path, meta)
}

func appendMetadata(path string, meta SvgMetadata) error {
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	buffer := new(bytes.Buffer)
	if err := json.Compact(buffer, jsonBytes); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, _ = f.Write([]byte("\n<!--\n"))
	_, _ = f.Write(buffer.Bytes())
	_, err = f.Write([]byte("\n-->"))
	return err
}

func drawOutline(gc draw2d.GraphicContext, outline []circuit.Point, meta SvgMetadata, rect image.Rectangle, scale float64) {
	gc.Save()
	gc.SetStrokeColor(color.RGBA{0x00, 0x00, 0x00, 0xff})
	gc.SetLineWidth(20 * scale)

	initX, initY := 0.0, 0.0
	for _, p := range outline {
		x := p.X*(1.0-scale) + meta.OffsetX
		y := p.Y*(1.0-scale) + meta.OffsetY
		if initX == 0.0 && initY == 0.0 {
			gc.MoveTo(x, y)
			initX, initY = x, y
		} else {
			gc.LineTo(x, y)
		}
	}
	// the outline is a closed loop
	gc.LineTo(initX, initY)

	orient(gc, meta, rect)
	gc.Stroke()
	gc.Restore()
}

func drawCorners(gc draw2d.GraphicContext, corners []circuit.Corner, meta SvgMetadata, rect image.Rectangle, scale float64) {
	gc.Save()
	gc.SetStrokeColor(color.RGBA{0xcc, 0x22, 0x22, 0xff})
	gc.SetLineWidth(8 * scale)

	r := cornerMarkerRadius * (1.0 - scale)
	for _, c := range corners {
		x := c.TrackPosition.X*(1.0-scale) + meta.OffsetX
		y := c.TrackPosition.Y*(1.0-scale) + meta.OffsetY
		gc.MoveTo(x+r, y)
		gc.ArcTo(x, y, r, r, 0, 2*math.Pi)
	}

	orient(gc, meta, rect)
	gc.Stroke()
	gc.Restore()
}

// orient flips the image around the Y axis and rotates portrait
// circuits into landscape.
func orient(gc draw2d.GraphicContext, meta SvgMetadata, rect image.Rectangle) {
	gc.Translate(0, float64(rect.Max.Y))
	gc.Scale(1.0, -1.0)

	if meta.Rotate {
		gc.Rotate(math.Pi / 2)
		f := meta.Width / meta.Height
		gc.Translate(0, -f*float64(rect.Max.Y))
	}
}
