package annotator

import (
	"fmt"
	"html"
	"io"
	"time"
)

// Shape roles within a scene.
const (
	ShapeSaved   = "saved"
	ShapePending = "pending"
	ShapePreview = "preview"
)

// Marker radii for point annotations, in percent units. Rendered as a
// two-tier concentric marker: an outer halo and an inner dot.
const (
	markerOuterRadius = 2.2
	markerInnerRadius = 0.9
	hitPathThreshold  = 1.5
)

// Shape is one drawable element of the overlay scene, in percent space.
// Saved shapes carry the annotation id used for hover hit testing; pending
// and preview shapes are non-interactive.
type Shape struct {
	ID      string
	Role    string
	Kind    Kind
	Anchor  Point
	Extent  Size
	Path    []Point
	Tooltip string
}

// Scene is the full overlay for one render pass, drawn back to front.
type Scene struct {
	Shapes  []Shape
	HoverID string
}

// BuildScene assembles the overlay from the store's current state and the
// capture's live preview: persisted annotations, then the in-progress
// gesture, then the pending draft with its unsaved treatment.
func BuildScene(store *Store, capture *Capture, now time.Time) Scene {
	scene := Scene{HoverID: store.Hover()}
	for _, a := range store.Set().Annotations {
		scene.Shapes = append(scene.Shapes, Shape{
			ID:      a.ID,
			Role:    ShapeSaved,
			Kind:    a.Kind,
			Anchor:  a.Anchor,
			Extent:  a.Extent,
			Path:    a.Path,
			Tooltip: tooltipText(a, now),
		})
	}
	if capture != nil {
		if rect, path, ok := capture.LivePreview(); ok {
			shape := Shape{Role: ShapePreview}
			if len(path) > 0 {
				shape.Kind = KindFreehand
				shape.Path = path
			} else {
				shape.Kind = KindRect
				shape.Anchor = Point{X: rect.X, Y: rect.Y}
				shape.Extent = Size{Width: rect.W, Height: rect.H}
			}
			scene.Shapes = append(scene.Shapes, shape)
		}
	}
	if pending := store.Pending(); pending != nil {
		scene.Shapes = append(scene.Shapes, Shape{
			Role:   ShapePending,
			Kind:   pending.Kind,
			Anchor: pending.Anchor,
			Extent: pending.Extent,
			Path:   pending.Path,
		})
	}
	return scene
}

// HitTest returns the id of the topmost saved annotation under p, or "".
// Rects hit by containment, points by marker radius, freehand by distance to
// the polyline. Pending and preview shapes have no hit region.
func (s Scene) HitTest(p Point) string {
	for i := len(s.Shapes) - 1; i >= 0; i-- {
		shape := s.Shapes[i]
		if shape.Role != ShapeSaved {
			continue
		}
		switch shape.Kind {
		case KindRect:
			r := Rect{X: shape.Anchor.X, Y: shape.Anchor.Y, W: shape.Extent.Width, H: shape.Extent.Height}
			if r.Contains(p) {
				return shape.ID
			}
		case KindFreehand:
			for j := 0; j+1 < len(shape.Path); j++ {
				if distanceToSegment(p, shape.Path[j], shape.Path[j+1]) <= hitPathThreshold {
					return shape.ID
				}
			}
		default:
			if distance(p, shape.Anchor) <= markerOuterRadius {
				return shape.ID
			}
		}
	}
	return ""
}

// WriteSVG renders the scene as an SVG overlay in the shared percent
// coordinate space (viewBox 0 0 100 100). Saved shapes carry
// data-annotation-id attributes and a title tooltip; the hovered shape gets
// the "hovered" class, pending shapes the "pending" class.
func (s Scene) WriteSVG(w io.Writer) error {
	if _, err := io.WriteString(w, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" preserveAspectRatio="none" class="annotation-overlay">`); err != nil {
		return err
	}
	for _, shape := range s.Shapes {
		if err := writeShapeSVG(w, shape, s.HoverID); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</svg>`)
	return err
}

func writeShapeSVG(w io.Writer, shape Shape, hoverID string) error {
	class := "annotation " + shape.Role
	if shape.Role == ShapeSaved && shape.ID == hoverID {
		class += " hovered"
	}
	attrs := fmt.Sprintf(` class=%q`, class)
	if shape.Role == ShapeSaved {
		attrs += fmt.Sprintf(` data-annotation-id=%q`, shape.ID)
	}

	title := ""
	if shape.Tooltip != "" {
		title = `<title>` + html.EscapeString(shape.Tooltip) + `</title>`
	}

	var body string
	switch shape.Kind {
	case KindRect:
		body = fmt.Sprintf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"%s>%s</rect>`,
			shape.Anchor.X, shape.Anchor.Y, shape.Extent.Width, shape.Extent.Height, attrs, title)
	case KindFreehand:
		points := ""
		for i, p := range shape.Path {
			if i > 0 {
				points += " "
			}
			points += fmt.Sprintf("%.2f,%.2f", p.X, p.Y)
		}
		body = fmt.Sprintf(`<polyline points=%q fill="none"%s>%s</polyline>`, points, attrs, title)
	default:
		body = fmt.Sprintf(`<g%s><circle cx="%.2f" cy="%.2f" r="%.2f" class="marker-outer"/><circle cx="%.2f" cy="%.2f" r="%.2f" class="marker-inner"/>%s</g>`,
			attrs, shape.Anchor.X, shape.Anchor.Y, markerOuterRadius,
			shape.Anchor.X, shape.Anchor.Y, markerInnerRadius, title)
	}
	_, err := io.WriteString(w, body)
	return err
}

func tooltipText(a Annotation, now time.Time) string {
	name := a.AuthorName
	if name == "" {
		name = a.Author
	}
	return fmt.Sprintf("%s · %s · %s", name, a.Comment, RelativeTime(a.Timestamp, now))
}

// RelativeTime humanizes a timestamp against now: "just now" under a minute,
// minutes under an hour, hours under a day, else the absolute date.
func RelativeTime(value, now time.Time) string {
	elapsed := now.Sub(value)
	if elapsed < time.Minute {
		return "just now"
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	}
	return value.Format("Jan 2, 2006")
}
