package annotator

import (
	"context"
	"errors"
	"testing"
)

type fakeAPI struct {
	getAnnotationsFn func(ctx context.Context, assetID string, revision int) (Set, error)
	submitFn         func(ctx context.Context, assetID string, draft Draft, comment string) error
	getCalls         int
	submitCalls      int
}

func (f *fakeAPI) GetAnnotations(ctx context.Context, assetID string, revision int) (Set, error) {
	f.getCalls++
	if f.getAnnotationsFn != nil {
		return f.getAnnotationsFn(ctx, assetID, revision)
	}
	return Set{AssetID: assetID, RevisionNumber: 1, CanAnnotate: true}, nil
}

func (f *fakeAPI) SubmitAnnotation(ctx context.Context, assetID string, draft Draft, comment string) error {
	f.submitCalls++
	if f.submitFn != nil {
		return f.submitFn(ctx, assetID, draft, comment)
	}
	return nil
}

func loadedStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	s := NewStore(api, "asset-1")
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestSubmitEmptyCommentRejectedWithoutNetworkCall(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 10, Y: 10}})

	for _, comment := range []string{"", "   ", "\n\t"} {
		if err := s.Submit(context.Background(), comment); !errors.Is(err, ErrEmptyComment) {
			t.Fatalf("comment %q: err = %v, want ErrEmptyComment", comment, err)
		}
	}
	if api.submitCalls != 0 {
		t.Fatalf("empty comment reached the network: %d calls", api.submitCalls)
	}
	if s.Pending() == nil {
		t.Fatalf("rejected submit discarded the pending draft")
	}
}

func TestSubmitSuccessClearsPendingAndReloads(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindRect, Anchor: Point{X: 5, Y: 5}, Extent: Size{Width: 3, Height: 3}})

	getsBefore := api.getCalls
	if err := s.Submit(context.Background(), "  tighten the crop  "); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if api.submitCalls != 1 {
		t.Fatalf("submit calls = %d", api.submitCalls)
	}
	if s.Pending() != nil {
		t.Fatalf("pending draft survived successful submit")
	}
	if api.getCalls != getsBefore+1 {
		t.Fatalf("expected a fresh fetch after submit, gets %d -> %d", getsBefore, api.getCalls)
	}
}

func TestSubmitWithoutDraftDefaultsToCenteredPoint(t *testing.T) {
	var submitted Draft
	api := &fakeAPI{
		submitFn: func(_ context.Context, _ string, draft Draft, _ string) error {
			submitted = draft
			return nil
		},
	}
	s := loadedStore(t, api)
	if err := s.Submit(context.Background(), "general note"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Kind != KindPoint || submitted.Anchor.X != 50 || submitted.Anchor.Y != 50 {
		t.Fatalf("default draft = %+v, want centered point", submitted)
	}
}

func TestSubmitFailurePreservesPending(t *testing.T) {
	api := &fakeAPI{
		submitFn: func(context.Context, string, Draft, string) error {
			return &NetworkError{Op: "submit", Err: errors.New("boom")}
		},
	}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 10, Y: 20}})

	err := s.Submit(context.Background(), "try again later")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if s.Pending() == nil {
		t.Fatalf("failed submit discarded the pending draft")
	}
}

func TestSubmitRefusedOnReadOnlyRevision(t *testing.T) {
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			return Set{AssetID: assetID, RevisionNumber: 1, CanAnnotate: false}, nil
		},
	}
	s := loadedStore(t, api)
	if err := s.Submit(context.Background(), "hello"); !errors.Is(err, ErrReadOnlyRevision) {
		t.Fatalf("err = %v, want ErrReadOnlyRevision", err)
	}
	if api.submitCalls != 0 {
		t.Fatalf("read-only submit reached the network")
	}
}

func TestStageIgnoredOnReadOnlyRevision(t *testing.T) {
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			return Set{AssetID: assetID, RevisionNumber: 1, CanAnnotate: false}, nil
		},
	}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint})
	if s.Pending() != nil {
		t.Fatalf("stage succeeded on a read-only revision")
	}
}

func TestSwitchingRevisionDiscardsPendingAndRefetches(t *testing.T) {
	discarded := 0
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			if revision == 0 {
				revision = 3
			}
			return Set{
				AssetID:        assetID,
				RevisionNumber: revision,
				CanAnnotate:    revision == 3,
				Annotations:    []Annotation{{ID: "a-" + string(rune('0'+revision))}},
			}, nil
		},
	}
	s := loadedStore(t, api)
	s.OnPendingDiscarded = func() { discarded++ }
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 1, Y: 1}})
	s.SetHover("a-3")

	if err := s.LoadRevision(context.Background(), 2); err != nil {
		t.Fatalf("load revision: %v", err)
	}
	if s.Pending() != nil {
		t.Fatalf("pending draft survived revision switch")
	}
	if discarded != 1 {
		t.Fatalf("discard callback fired %d times", discarded)
	}
	if s.Hover() != "" {
		t.Fatalf("hover survived revision switch")
	}
	set := s.Set()
	if set.RevisionNumber != 2 || set.CanAnnotate {
		t.Fatalf("unexpected set after switch: %+v", set)
	}
	if s.CanAnnotate() {
		t.Fatalf("historical revision should be read-only")
	}
}

func TestRefreshOfLatestKeepsPendingDraft(t *testing.T) {
	discarded := 0
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			return Set{AssetID: assetID, RevisionNumber: 3, CanAnnotate: true}, nil
		},
	}
	s := loadedStore(t, api)
	s.OnPendingDiscarded = func() { discarded++ }
	s.Stage(Draft{Kind: KindRect, Anchor: Point{X: 5, Y: 5}, Extent: Size{Width: 2, Height: 2}})
	s.SetHover("a-3")

	// A poll-style refresh asks for the latest revision again; the fetched
	// set is still revision 3, so nothing the user built up is destroyed.
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.Pending() == nil {
		t.Fatalf("refresh of the latest revision discarded the pending draft")
	}
	if discarded != 0 {
		t.Fatalf("discard callback fired %d times on refresh", discarded)
	}
	if s.Hover() != "a-3" {
		t.Fatalf("refresh cleared hover: %q", s.Hover())
	}

	// An actual revision change through the same path still discards.
	api.getAnnotationsFn = func(_ context.Context, assetID string, revision int) (Set, error) {
		return Set{AssetID: assetID, RevisionNumber: 4, CanAnnotate: true}, nil
	}
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load new latest: %v", err)
	}
	if s.Pending() != nil || discarded != 1 || s.Hover() != "" {
		t.Fatalf("new latest revision kept stale view state: pending=%v discarded=%d hover=%q",
			s.Pending(), discarded, s.Hover())
	}
}

func TestFailedRefreshKeepsPendingDraft(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 9, Y: 9}})

	api.getAnnotationsFn = func(context.Context, string, int) (Set, error) {
		return Set{}, &NetworkError{Op: "annotations", Err: errors.New("timeout")}
	}
	if err := s.LoadRevision(context.Background(), 2); err == nil {
		t.Fatalf("expected fetch error")
	}
	if s.Pending() == nil {
		t.Fatalf("failed fetch discarded the pending draft")
	}
}

func TestReloadingSameRevisionIsIdempotent(t *testing.T) {
	api := &fakeAPI{
		getAnnotationsFn: func(_ context.Context, assetID string, revision int) (Set, error) {
			return Set{
				AssetID:        assetID,
				RevisionNumber: 1,
				CanAnnotate:    true,
				Annotations:    []Annotation{{ID: "a1"}, {ID: "a2"}},
			}, nil
		},
	}
	s := loadedStore(t, api)
	first := s.Set()
	if err := s.LoadRevision(context.Background(), 1); err != nil {
		t.Fatalf("reload: %v", err)
	}
	second := s.Set()
	if len(first.Annotations) != len(second.Annotations) {
		t.Fatalf("reload changed the set: %d vs %d", len(first.Annotations), len(second.Annotations))
	}
}

func TestStagingFiresFocusRequest(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	staged := 0
	s.OnStaged = func() { staged++ }
	s.Stage(Draft{Kind: KindPoint})
	if staged != 1 {
		t.Fatalf("OnStaged fired %d times", staged)
	}
}

func TestStageReplacesExistingPending(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	s.Stage(Draft{Kind: KindPoint, Anchor: Point{X: 1, Y: 1}})
	s.Stage(Draft{Kind: KindRect, Anchor: Point{X: 2, Y: 2}, Extent: Size{Width: 4, Height: 4}})
	pending := s.Pending()
	if pending == nil || pending.Kind != KindRect {
		t.Fatalf("second stage did not replace the first: %+v", pending)
	}
}

func TestHoverIsSingleSourceOfTruth(t *testing.T) {
	api := &fakeAPI{}
	s := loadedStore(t, api)
	changes := 0
	s.OnChange = func() { changes++ }

	s.SetHover("a1")
	if s.Hover() != "a1" {
		t.Fatalf("hover = %q", s.Hover())
	}
	if changes != 1 {
		t.Fatalf("change notifications = %d", changes)
	}
	// Re-setting the same id is a no-op, so both views cannot diverge by
	// redundant notifications.
	s.SetHover("a1")
	if changes != 1 {
		t.Fatalf("redundant hover fired a change")
	}
	s.SetHover("")
	if s.Hover() != "" || changes != 2 {
		t.Fatalf("unhover: hover=%q changes=%d", s.Hover(), changes)
	}
}
