package annotator

import "testing"

func collectDrafts() (*Capture, *[]Draft) {
	var drafts []Draft
	c := NewCapture(func(d Draft) { drafts = append(drafts, d) })
	return c, &drafts
}

func TestCursorClickCommitsPoint(t *testing.T) {
	c, drafts := collectDrafts()
	c.PointerDown(Point{X: 40, Y: 60})
	c.PointerUp(Point{X: 40, Y: 60})

	if len(*drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(*drafts))
	}
	d := (*drafts)[0]
	if d.Kind != KindPoint || d.Anchor.X != 40 || d.Anchor.Y != 60 {
		t.Fatalf("unexpected draft %+v", d)
	}
}

func TestCursorDragReclassifiesAsRect(t *testing.T) {
	c, drafts := collectDrafts()
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 18, Y: 14})
	c.PointerUp(Point{X: 18, Y: 14})

	if len(*drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(*drafts))
	}
	d := (*drafts)[0]
	if d.Kind != KindRect {
		t.Fatalf("expected rect, got %s", d.Kind)
	}
	if d.Anchor.X != 10 || d.Anchor.Y != 10 || d.Extent.Width != 8 || d.Extent.Height != 4 {
		t.Fatalf("unexpected rect draft %+v", d)
	}
}

func TestRectDragCommitsExtent(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetTool(ToolRect)
	c.PointerDown(Point{X: 20, Y: 20})
	c.PointerMove(Point{X: 23, Y: 23})
	c.PointerUp(Point{X: 23, Y: 23})

	if len(*drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(*drafts))
	}
	d := (*drafts)[0]
	if d.Kind != KindRect || d.Extent.Width != 3 || d.Extent.Height != 3 {
		t.Fatalf("unexpected draft %+v", d)
	}
}

func TestRectClickWithinDeadzoneCommitsNothing(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetTool(ToolRect)
	c.PointerDown(Point{X: 20, Y: 20})
	c.PointerMove(Point{X: 21, Y: 21})
	c.PointerUp(Point{X: 21, Y: 21})

	if len(*drafts) != 0 {
		t.Fatalf("sub-deadzone rect drag committed %d drafts", len(*drafts))
	}
	if c.Dragging() {
		t.Fatalf("gesture state not reset")
	}
}

func TestPenCommitsPathAndBoundingBoxCenter(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetTool(ToolPen)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 20, Y: 10})
	c.PointerMove(Point{X: 20, Y: 20})
	c.PointerUp(Point{X: 20, Y: 20})

	if len(*drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(*drafts))
	}
	d := (*drafts)[0]
	if d.Kind != KindFreehand {
		t.Fatalf("expected freehand, got %s", d.Kind)
	}
	if d.Anchor.X != 15 || d.Anchor.Y != 15 {
		t.Fatalf("anchor = %+v, want bounding-box center (15,15)", d.Anchor)
	}
	// Path is the recorded sequence verbatim: down + each move. Up does not
	// append.
	want := []Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}}
	if len(d.Path) != len(want) {
		t.Fatalf("path length %d, want %d (%+v)", len(d.Path), len(want), d.Path)
	}
	for i, p := range want {
		if d.Path[i] != p {
			t.Fatalf("path[%d] = %+v, want %+v", i, d.Path[i], p)
		}
	}
}

func TestPenSinglePointDiscards(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetTool(ToolPen)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerUp(Point{X: 10, Y: 10})

	if len(*drafts) != 0 {
		t.Fatalf("single-point pen gesture committed %d drafts", len(*drafts))
	}
}

func TestPointerLeaveCancelsPenButNotRect(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetTool(ToolPen)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 20, Y: 20})
	c.PointerLeave()
	c.PointerUp(Point{X: 30, Y: 30})
	if len(*drafts) != 0 {
		t.Fatalf("pen gesture survived pointer leave")
	}

	c.SetTool(ToolRect)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 40, Y: 40})
	c.PointerLeave()
	c.PointerUp(Point{X: 50, Y: 50})
	if len(*drafts) != 1 {
		t.Fatalf("rect drag should survive pointer leave, got %d drafts", len(*drafts))
	}
	if (*drafts)[0].Extent.Width != 40 {
		t.Fatalf("rect resolved at wrong corner: %+v", (*drafts)[0])
	}
}

func TestDisabledCaptureIgnoresPointerEvents(t *testing.T) {
	c, drafts := collectDrafts()
	c.SetEnabled(false)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 30, Y: 30})
	c.PointerUp(Point{X: 30, Y: 30})
	if len(*drafts) != 0 {
		t.Fatalf("disabled capture committed a draft")
	}
}

func TestCommitKeepsSelectedTool(t *testing.T) {
	c, _ := collectDrafts()
	c.SetTool(ToolRect)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 30, Y: 30})
	c.PointerUp(Point{X: 30, Y: 30})
	if c.Tool() != ToolRect {
		t.Fatalf("tool reset to %s after commit", c.Tool())
	}
}

func TestSetToolMidGestureCancels(t *testing.T) {
	c, drafts := collectDrafts()
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 30, Y: 30})
	c.SetTool(ToolPen)
	c.PointerUp(Point{X: 30, Y: 30})
	if len(*drafts) != 0 {
		t.Fatalf("tool switch mid-gesture still committed")
	}
}

func TestLivePreview(t *testing.T) {
	c, _ := collectDrafts()
	c.SetTool(ToolRect)
	if _, _, ok := c.LivePreview(); ok {
		t.Fatalf("idle capture has a preview")
	}
	c.PointerDown(Point{X: 10, Y: 10})
	if _, _, ok := c.LivePreview(); ok {
		t.Fatalf("sub-deadzone drag has a preview")
	}
	c.PointerMove(Point{X: 25, Y: 30})
	rect, path, ok := c.LivePreview()
	if !ok || path != nil {
		t.Fatalf("expected rect preview")
	}
	if rect.W != 15 || rect.H != 20 {
		t.Fatalf("preview rect %+v", rect)
	}
}
