package annotator

import (
	"context"
	"testing"
)

type fakeSessionAPI struct {
	fakeAPI
	fakeWorkflowAPI
	asset     Asset
	revisions []Revision
	users     []User
	userQuery string
}

func (f *fakeSessionAPI) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	return f.asset, nil
}

func (f *fakeSessionAPI) GetRevisionHistory(ctx context.Context, assetID string) ([]Revision, error) {
	return f.revisions, nil
}

func (f *fakeSessionAPI) SearchUsers(ctx context.Context, query string) ([]User, error) {
	f.userQuery = query
	return f.users, nil
}

func TestMountDisablesCaptureForVideo(t *testing.T) {
	api := &fakeSessionAPI{asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/spot.mp4"}}
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		return Set{AssetID: assetID, RevisionNumber: 1, RevisionFile: "https://cdn.example.com/spot.mp4?sig=abc", CanAnnotate: true}, nil
	}
	s := NewSession(api, "asset-1", Capabilities{})
	if err := s.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if s.Capture.Enabled() {
		t.Fatalf("capture enabled for video media")
	}
}

func TestMountEnablesCaptureForLatestImageRevision(t *testing.T) {
	api := &fakeSessionAPI{asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/banner.png"}}
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		return Set{AssetID: assetID, RevisionNumber: 3, RevisionFile: "https://cdn.example.com/banner-r3.png", CanAnnotate: true}, nil
	}
	s := NewSession(api, "asset-1", Capabilities{})
	if err := s.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if !s.Capture.Enabled() {
		t.Fatalf("capture disabled for annotatable image revision")
	}
}

func TestSwitchRevisionGatesCapture(t *testing.T) {
	api := &fakeSessionAPI{asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/banner.png"}}
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		if revision == 0 {
			revision = 3
		}
		return Set{
			AssetID:        assetID,
			RevisionNumber: revision,
			RevisionFile:   "https://cdn.example.com/banner.png",
			CanAnnotate:    revision == 3,
		}, nil
	}
	s := NewSession(api, "asset-1", Capabilities{RevisionHistory: true})
	if err := s.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	s.Store.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 5, Y: 5}})

	if err := s.SwitchRevision(context.Background(), 2); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.Capture.Enabled() {
		t.Fatalf("capture enabled on historical revision")
	}
	if s.Store.Pending() != nil {
		t.Fatalf("pending draft survived revision switch")
	}

	if err := s.SwitchRevision(context.Background(), 3); err != nil {
		t.Fatalf("switch back: %v", err)
	}
	if !s.Capture.Enabled() {
		t.Fatalf("capture disabled back on latest revision")
	}
}

func TestGestureFlowsIntoStore(t *testing.T) {
	api := &fakeSessionAPI{asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/banner.png"}}
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		return Set{AssetID: assetID, RevisionNumber: 1, RevisionFile: "https://cdn.example.com/banner.png", CanAnnotate: true}, nil
	}
	s := NewSession(api, "asset-1", Capabilities{})
	if err := s.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}

	s.Capture.SetTool(ToolRect)
	s.Capture.PointerDown(Point{X: 10, Y: 10})
	s.Capture.PointerMove(Point{X: 20, Y: 18})
	s.Capture.PointerUp(Point{X: 20, Y: 18})

	pending := s.Store.Pending()
	if pending == nil || pending.Kind != KindRect {
		t.Fatalf("gesture did not stage a draft: %+v", pending)
	}
}

func TestMentionsGatedByCapability(t *testing.T) {
	api := &fakeSessionAPI{
		asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/banner.png"},
		users: []User{{ID: "u1", DisplayName: "Priya N."}},
	}
	off := NewSession(api, "asset-1", Capabilities{})
	users, err := off.MentionMatches(context.Background(), "hi @pri", 7)
	if err != nil || users != nil {
		t.Fatalf("capability off: %v %v", users, err)
	}

	on := NewSession(api, "asset-1", Capabilities{Mentions: true})
	users, err = on.MentionMatches(context.Background(), "hi @pri", 7)
	if err != nil {
		t.Fatalf("mention search: %v", err)
	}
	if len(users) != 1 || api.userQuery != "pri" {
		t.Fatalf("users=%+v query=%q", users, api.userQuery)
	}

	// No active mention at the caret means no collaborator call.
	api.userQuery = ""
	users, err = on.MentionMatches(context.Background(), "plain text", 5)
	if err != nil || users != nil || api.userQuery != "" {
		t.Fatalf("inactive mention still searched: %v %q", users, api.userQuery)
	}
}

func TestCloseTearsDownViewState(t *testing.T) {
	api := &fakeSessionAPI{asset: Asset{ID: "asset-1", MediaURL: "https://cdn.example.com/banner.png"}}
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		return Set{AssetID: assetID, RevisionNumber: 1, CanAnnotate: true, Annotations: []Annotation{{ID: "a1"}}}, nil
	}
	s := NewSession(api, "asset-1", Capabilities{})
	if err := s.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	s.Store.Stage(Draft{Kind: KindPoint})
	s.Close()

	if s.Store.Pending() != nil || len(s.Store.Set().Annotations) != 0 {
		t.Fatalf("view state survived Close")
	}
	if s.Capture.Enabled() {
		t.Fatalf("capture enabled after Close")
	}
}

func TestIsVideoMedia(t *testing.T) {
	cases := map[string]bool{
		"https://cdn.example.com/spot.mp4":        true,
		"https://cdn.example.com/spot.MP4?sig=xy": true,
		"https://cdn.example.com/banner.png":      false,
		"https://cdn.example.com/banner":          false,
		"clip.webm":                               true,
	}
	for url, want := range cases {
		if got := IsVideoMedia(url); got != want {
			t.Fatalf("IsVideoMedia(%q) = %v", url, got)
		}
	}
}
