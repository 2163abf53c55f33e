package annotator

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func sceneFixture(t *testing.T) (Scene, *Store) {
	t.Helper()
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			return Set{
				AssetID:        assetID,
				RevisionNumber: 1,
				CanAnnotate:    true,
				Annotations: []Annotation{
					{ID: "pt", Kind: KindPoint, Anchor: Point{X: 40, Y: 40}, Comment: "logo", AuthorName: "Priya N.", Timestamp: time.Now()},
					{ID: "box", Kind: KindRect, Anchor: Point{X: 10, Y: 10}, Extent: Size{Width: 20, Height: 10}, Comment: "crop", AuthorName: "Sam T.", Timestamp: time.Now()},
					{ID: "line", Kind: KindFreehand, Path: []Point{{X: 60, Y: 60}, {X: 70, Y: 60}, {X: 70, Y: 70}}, Comment: "edge", AuthorName: "Priya N.", Timestamp: time.Now()},
				},
			}, nil
		},
	}
	s := loadedStore(t, api)
	return BuildScene(s, nil, time.Now()), s
}

func TestHitTestByKind(t *testing.T) {
	scene, _ := sceneFixture(t)

	if got := scene.HitTest(Point{X: 15, Y: 12}); got != "box" {
		t.Fatalf("rect hit = %q", got)
	}
	if got := scene.HitTest(Point{X: 40.5, Y: 40.5}); got != "pt" {
		t.Fatalf("marker hit = %q", got)
	}
	if got := scene.HitTest(Point{X: 65, Y: 60.5}); got != "line" {
		t.Fatalf("polyline hit = %q", got)
	}
	if got := scene.HitTest(Point{X: 95, Y: 95}); got != "" {
		t.Fatalf("empty space hit = %q", got)
	}
}

func TestPendingShapeHasNoHitRegion(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindRect, Anchor: Point{X: 10, Y: 10}, Extent: Size{Width: 30, Height: 30}})
	scene := BuildScene(s, nil, time.Now())
	if got := scene.HitTest(Point{X: 20, Y: 20}); got != "" {
		t.Fatalf("pending shape is interactive: hit %q", got)
	}
}

func TestWriteSVGMarksHoverAndIDs(t *testing.T) {
	scene, store := sceneFixture(t)
	store.SetHover("box")
	scene.HoverID = store.Hover()

	var buf bytes.Buffer
	if err := scene.WriteSVG(&buf); err != nil {
		t.Fatalf("write svg: %v", err)
	}
	svg := buf.String()
	if !strings.Contains(svg, `viewBox="0 0 100 100"`) {
		t.Fatalf("missing percent viewBox: %s", svg)
	}
	for _, id := range []string{"pt", "box", "line"} {
		if !strings.Contains(svg, `data-annotation-id="`+id+`"`) {
			t.Fatalf("missing id %q in svg", id)
		}
	}
	if !strings.Contains(svg, `annotation saved hovered`) {
		t.Fatalf("hovered shape not marked: %s", svg)
	}
	if strings.Count(svg, "hovered") != 1 {
		t.Fatalf("hover applied to more than one shape")
	}
	if !strings.Contains(svg, "<title>") {
		t.Fatalf("saved shapes carry no tooltip")
	}
}

func TestScenePendingUsesUnsavedTreatment(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 50, Y: 50}})
	scene := BuildScene(s, nil, time.Now())

	var buf bytes.Buffer
	if err := scene.WriteSVG(&buf); err != nil {
		t.Fatalf("write svg: %v", err)
	}
	if !strings.Contains(buf.String(), `annotation pending`) {
		t.Fatalf("pending draft not rendered with unsaved class: %s", buf.String())
	}
}

func TestBuildSceneIncludesLivePreview(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	c := NewCapture(s.Stage)
	c.SetTool(ToolRect)
	c.PointerDown(Point{X: 10, Y: 10})
	c.PointerMove(Point{X: 30, Y: 25})

	scene := BuildScene(s, c, time.Now())
	found := false
	for _, shape := range scene.Shapes {
		if shape.Role == ShapePreview && shape.Kind == KindRect {
			found = true
			if shape.Extent.Width != 20 || shape.Extent.Height != 15 {
				t.Fatalf("preview extent %+v", shape.Extent)
			}
		}
	}
	if !found {
		t.Fatalf("live preview missing from scene")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-20 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-40 * time.Hour), "Aug 28, 2026"},
	}
	for _, tc := range cases {
		if got := RelativeTime(tc.at, now); got != tc.want {
			t.Fatalf("RelativeTime(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}
