package annotator

// Tool selects how pointer events are interpreted.
type Tool string

const (
	ToolCursor Tool = "cursor"
	ToolRect   Tool = "rect"
	ToolPen    Tool = "pen"
)

// DragDeadzone is the drag threshold in percent units. A cursor or rect
// gesture that never moves past it on either axis is treated as a click.
const DragDeadzone = 2.0

// Capture turns pointer down/move/up sequences into annotation drafts. It is
// a single-gesture state machine: idle until PointerDown, tracking until
// PointerUp or cancellation. Committing hands a Draft to the commit callback
// and returns to idle without changing the selected tool.
type Capture struct {
	tool    Tool
	enabled bool

	dragging bool
	dragged  bool
	start    Point
	current  Point
	path     []Point

	commit func(Draft)
}

// NewCapture builds an enabled capture in cursor mode. onCommit receives each
// completed gesture's draft; it must not be nil.
func NewCapture(onCommit func(Draft)) *Capture {
	return &Capture{tool: ToolCursor, enabled: true, commit: onCommit}
}

// Tool returns the selected tool.
func (c *Capture) Tool() Tool { return c.tool }

// SetTool switches the active tool. An in-progress gesture is discarded.
func (c *Capture) SetTool(tool Tool) {
	switch tool {
	case ToolCursor, ToolRect, ToolPen:
	default:
		return
	}
	c.reset()
	c.tool = tool
}

// SetEnabled gates capture. It is switched off while the rendered media is a
// video or the viewed revision is not the latest; disabling cancels any
// in-progress gesture.
func (c *Capture) SetEnabled(enabled bool) {
	if !enabled {
		c.reset()
	}
	c.enabled = enabled
}

// Enabled reports whether pointer events are being interpreted.
func (c *Capture) Enabled() bool { return c.enabled }

// Dragging reports whether a gesture is in progress.
func (c *Capture) Dragging() bool { return c.dragging }

// PointerDown starts a gesture at p.
func (c *Capture) PointerDown(p Point) {
	if !c.enabled {
		return
	}
	p = p.Clamp()
	c.dragging = true
	c.dragged = false
	c.start = p
	c.current = p
	if c.tool == ToolPen {
		c.path = []Point{p}
	}
}

// PointerMove advances the gesture. For cursor and rect tools the gesture
// only counts as a drag once it leaves the deadzone; the pen tool records
// every movement.
func (c *Capture) PointerMove(p Point) {
	if !c.enabled || !c.dragging {
		return
	}
	p = p.Clamp()
	c.current = p
	if c.tool == ToolPen {
		c.path = append(c.path, p)
		return
	}
	if exceedsDeadzone(c.start, p) {
		c.dragged = true
	}
}

// PointerUp resolves the gesture at p.
//
// cursor: a click (no drag beyond the deadzone) commits a point at the down
// location; a drag commits the swept rectangle. rect: a drag commits the
// swept rectangle, a click commits nothing. pen: two or more recorded points
// commit a freehand draft anchored at the path's bounding-box center; fewer
// discard the gesture.
func (c *Capture) PointerUp(p Point) {
	if !c.enabled || !c.dragging {
		return
	}
	p = p.Clamp()
	c.current = p

	var draft *Draft
	switch c.tool {
	case ToolCursor:
		if c.dragged || exceedsDeadzone(c.start, p) {
			draft = rectDraft(c.start, p)
		} else {
			draft = &Draft{Kind: KindPoint, Anchor: c.start}
		}
	case ToolRect:
		if c.dragged || exceedsDeadzone(c.start, p) {
			draft = rectDraft(c.start, p)
		}
	case ToolPen:
		if len(c.path) >= 2 {
			path := c.path
			draft = &Draft{
				Kind:   KindFreehand,
				Anchor: BoundingBox(path).Center(),
				Path:   path,
			}
		}
	}

	c.reset()
	if draft != nil {
		c.commit(*draft)
	}
}

// PointerLeave handles the pointer exiting the tracked surface. A freehand
// path cannot continue off-surface and is cancelled; a rectangle drag keeps
// going and resolves on whatever pointer-up eventually arrives.
func (c *Capture) PointerLeave() {
	if c.dragging && c.tool == ToolPen {
		c.reset()
	}
}

// LivePreview returns the in-progress shape for rendering: the swept
// rectangle for a cursor/rect drag past the deadzone, or the recorded path
// for a pen gesture. ok is false when there is nothing to preview.
func (c *Capture) LivePreview() (rect Rect, path []Point, ok bool) {
	if !c.dragging {
		return Rect{}, nil, false
	}
	switch c.tool {
	case ToolPen:
		if len(c.path) == 0 {
			return Rect{}, nil, false
		}
		return Rect{}, c.path, true
	default:
		if !c.dragged {
			return Rect{}, nil, false
		}
		return RectFromCorners(c.start, c.current), nil, true
	}
}

func (c *Capture) reset() {
	c.dragging = false
	c.dragged = false
	c.path = nil
}

func exceedsDeadzone(a, b Point) bool {
	dx := b.X - a.X
	if dx < 0 {
		dx = -dx
	}
	dy := b.Y - a.Y
	if dy < 0 {
		dy = -dy
	}
	return dx > DragDeadzone || dy > DragDeadzone
}

func rectDraft(a, b Point) *Draft {
	r := RectFromCorners(a, b)
	return &Draft{
		Kind:   KindRect,
		Anchor: Point{X: r.X, Y: r.Y},
		Extent: Size{Width: r.W, Height: r.H},
	}
}
