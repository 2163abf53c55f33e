package annotator

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// maxRenderWidth caps burned-in output so review sheets and thumbnails stay
// reasonably sized regardless of the source media.
const maxRenderWidth = 1600

var (
	savedColor   = color.NRGBA{R: 244, G: 63, B: 94, A: 255}
	pendingColor = color.NRGBA{R: 245, G: 158, B: 11, A: 255}
	previewColor = color.NRGBA{R: 59, G: 130, B: 246, A: 200}
	haloColor    = color.NRGBA{R: 255, G: 255, B: 255, A: 160}
)

// RenderPNG burns the scene into the media image and writes the result as
// PNG. Percent coordinates scale to the (possibly downscaled) pixel canvas,
// so the overlay lines up with the rendered media exactly as the SVG overlay
// would.
func RenderPNG(w io.Writer, media image.Image, scene Scene) error {
	canvas := fitToWidth(media, maxRenderWidth)
	dc := gg.NewContextForImage(canvas)
	width := float64(dc.Width())
	height := float64(dc.Height())
	px := func(p Point) (float64, float64) {
		return p.X / 100 * width, p.Y / 100 * height
	}
	lineWidth := width / 400
	if lineWidth < 1.5 {
		lineWidth = 1.5
	}

	for _, shape := range scene.Shapes {
		dc.SetColor(shapeColor(shape.Role))
		dc.SetLineWidth(lineWidth)
		switch shape.Kind {
		case KindRect:
			x, y := px(shape.Anchor)
			dc.DrawRectangle(x, y, shape.Extent.Width/100*width, shape.Extent.Height/100*height)
			dc.Stroke()
		case KindFreehand:
			if len(shape.Path) < 2 {
				continue
			}
			x0, y0 := px(shape.Path[0])
			dc.MoveTo(x0, y0)
			for _, p := range shape.Path[1:] {
				x, y := px(p)
				dc.LineTo(x, y)
			}
			dc.Stroke()
		default:
			x, y := px(shape.Anchor)
			outer := markerOuterRadius / 100 * width
			inner := markerInnerRadius / 100 * width
			dc.SetColor(haloColor)
			dc.DrawCircle(x, y, outer)
			dc.Fill()
			dc.SetColor(shapeColor(shape.Role))
			dc.DrawCircle(x, y, inner)
			dc.Fill()
		}
	}

	return png.Encode(w, dc.Image())
}

func shapeColor(role string) color.NRGBA {
	switch role {
	case ShapePending:
		return pendingColor
	case ShapePreview:
		return previewColor
	default:
		return savedColor
	}
}

func fitToWidth(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return src
	}
	scale := float64(maxWidth) / float64(bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, int(float64(bounds.Dy())*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
