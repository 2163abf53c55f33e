package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"lightbox/api/internal/annotator"
	"lightbox/api/internal/assetlog"
	"lightbox/api/internal/config"
	"lightbox/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn               func(context.Context, string) (store.User, error)
	searchUsersFn               func(context.Context, string, int) ([]store.User, error)
	listProjectsFn              func(context.Context) ([]store.Project, error)
	getProjectFn                func(context.Context, string) (store.Project, error)
	insertProjectFn             func(context.Context, store.Project) error
	projectAssetsFn             func(context.Context, string) ([]store.Asset, error)
	projectStatusCountsFn       func(context.Context, string) ([]store.StatusCount, error)
	insertAssetFn               func(context.Context, store.Asset) error
	getAssetFn                  func(context.Context, string) (store.Asset, error)
	listAssetsFn                func(context.Context, string, string, int) ([]store.Asset, error)
	recentAssetsFn              func(context.Context, int) ([]store.Asset, error)
	updateAssetMetaFn           func(context.Context, string, string, string, string, *time.Time) error
	updateAssetStatusFn         func(context.Context, string, string) error
	countAssetsByStatusFn       func(context.Context) ([]store.StatusCount, error)
	insertRevisionFn            func(context.Context, store.Revision) (store.Revision, error)
	listRevisionsFn             func(context.Context, string) ([]store.Revision, error)
	getRevisionFn               func(context.Context, string, int) (store.Revision, error)
	latestRevisionFn            func(context.Context, string) (store.Revision, error)
	recentUploadsFn             func(context.Context, int) ([]store.UploadEntry, error)
	insertAnnotationFn          func(context.Context, store.Annotation) error
	listAnnotationsByRevisionFn func(context.Context, string) ([]store.Annotation, error)
	listTransitionsFromFn       func(context.Context, string) ([]store.WorkflowTransition, error)
	insertNotificationFn        func(context.Context, store.Notification) error
	listNotificationsFn         func(context.Context, string, int) ([]store.Notification, error)
	markNotificationReadFn      func(context.Context, string, string) (bool, error)
	markAllNotificationsReadFn  func(context.Context, string) error
	unreadNotificationCountFn   func(context.Context, string) (int, error)
	summaryCountsFn             func(context.Context) (int, int, int, error)
	pingFn                      func(context.Context) error
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) SearchUsers(ctx context.Context, q string, limit int) ([]store.User, error) {
	if f.searchUsersFn != nil {
		return f.searchUsersFn(ctx, q, limit)
	}
	return nil, nil
}

func (f *fakeStore) ListProjects(ctx context.Context) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, id)
	}
	return store.Project{}, sql.ErrNoRows
}

func (f *fakeStore) InsertProject(ctx context.Context, p store.Project) error {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, p)
	}
	return nil
}

func (f *fakeStore) ProjectAssets(ctx context.Context, id string) ([]store.Asset, error) {
	if f.projectAssetsFn != nil {
		return f.projectAssetsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeStore) ProjectStatusCounts(ctx context.Context, id string) ([]store.StatusCount, error) {
	if f.projectStatusCountsFn != nil {
		return f.projectStatusCountsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeStore) InsertAsset(ctx context.Context, a store.Asset) error {
	if f.insertAssetFn != nil {
		return f.insertAssetFn(ctx, a)
	}
	return nil
}

func (f *fakeStore) GetAsset(ctx context.Context, id string) (store.Asset, error) {
	if f.getAssetFn != nil {
		return f.getAssetFn(ctx, id)
	}
	return store.Asset{}, sql.ErrNoRows
}

func (f *fakeStore) ListAssets(ctx context.Context, status, campaign string, limit int) ([]store.Asset, error) {
	if f.listAssetsFn != nil {
		return f.listAssetsFn(ctx, status, campaign, limit)
	}
	return nil, nil
}

func (f *fakeStore) RecentAssets(ctx context.Context, limit int) ([]store.Asset, error) {
	if f.recentAssetsFn != nil {
		return f.recentAssetsFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) UpdateAssetMeta(ctx context.Context, id, title, campaign, category string, expiry *time.Time) error {
	if f.updateAssetMetaFn != nil {
		return f.updateAssetMetaFn(ctx, id, title, campaign, category, expiry)
	}
	return nil
}

func (f *fakeStore) UpdateAssetStatus(ctx context.Context, id, status string) error {
	if f.updateAssetStatusFn != nil {
		return f.updateAssetStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeStore) CountAssetsByStatus(ctx context.Context) ([]store.StatusCount, error) {
	if f.countAssetsByStatusFn != nil {
		return f.countAssetsByStatusFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) InsertRevision(ctx context.Context, r store.Revision) (store.Revision, error) {
	if f.insertRevisionFn != nil {
		return f.insertRevisionFn(ctx, r)
	}
	r.Number = 1
	r.CreatedAt = time.Now()
	return r, nil
}

func (f *fakeStore) ListRevisions(ctx context.Context, assetID string) ([]store.Revision, error) {
	if f.listRevisionsFn != nil {
		return f.listRevisionsFn(ctx, assetID)
	}
	return nil, nil
}

func (f *fakeStore) GetRevision(ctx context.Context, assetID string, number int) (store.Revision, error) {
	if f.getRevisionFn != nil {
		return f.getRevisionFn(ctx, assetID, number)
	}
	return store.Revision{}, sql.ErrNoRows
}

func (f *fakeStore) LatestRevision(ctx context.Context, assetID string) (store.Revision, error) {
	if f.latestRevisionFn != nil {
		return f.latestRevisionFn(ctx, assetID)
	}
	return store.Revision{}, sql.ErrNoRows
}

func (f *fakeStore) RecentUploads(ctx context.Context, limit int) ([]store.UploadEntry, error) {
	if f.recentUploadsFn != nil {
		return f.recentUploadsFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) InsertAnnotation(ctx context.Context, a store.Annotation) error {
	if f.insertAnnotationFn != nil {
		return f.insertAnnotationFn(ctx, a)
	}
	return nil
}

func (f *fakeStore) ListAnnotationsByRevision(ctx context.Context, revisionID string) ([]store.Annotation, error) {
	if f.listAnnotationsByRevisionFn != nil {
		return f.listAnnotationsByRevisionFn(ctx, revisionID)
	}
	return nil, nil
}

func (f *fakeStore) ListTransitionsFrom(ctx context.Context, fromState string) ([]store.WorkflowTransition, error) {
	if f.listTransitionsFromFn != nil {
		return f.listTransitionsFromFn(ctx, fromState)
	}
	return nil, nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n store.Notification) error {
	if f.insertNotificationFn != nil {
		return f.insertNotificationFn(ctx, n)
	}
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	if f.markNotificationReadFn != nil {
		return f.markNotificationReadFn(ctx, userID, id)
	}
	return false, nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if f.markAllNotificationsReadFn != nil {
		return f.markAllNotificationsReadFn(ctx, userID)
	}
	return nil
}

func (f *fakeStore) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	if f.unreadNotificationCountFn != nil {
		return f.unreadNotificationCountFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	if f.summaryCountsFn != nil {
		return f.summaryCountsFn(ctx)
	}
	return 0, 0, 0, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// fakeSessions keeps refresh sessions in memory.
type fakeSessions struct {
	mu    sync.Mutex
	saved map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string]store.User)}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.saved[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, tokenHash)
	return nil
}

// fakeAudit records messages per asset, newest first on History.
type fakeAudit struct {
	mu      sync.Mutex
	entries map[string][]assetlog.Entry
}

func (f *fakeAudit) EnsureAssetRepo(assetID string, _ assetlog.State, author string) error {
	return f.record(assetID, author, "Created asset")
}

func (f *fakeAudit) Record(assetID string, _ assetlog.State, author, message string) (assetlog.Entry, error) {
	if err := f.record(assetID, author, message); err != nil {
		return assetlog.Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[assetID][0], nil
}

func (f *fakeAudit) History(assetID string, limit int) ([]assetlog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.entries[assetID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeAudit) record(assetID, author, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = make(map[string][]assetlog.Entry)
	}
	entry := assetlog.Entry{
		Hash:      fmt.Sprintf("%07d", len(f.entries[assetID])+1),
		Message:   message,
		Author:    author,
		CreatedAt: time.Now(),
	}
	f.entries[assetID] = append([]assetlog.Entry{entry}, f.entries[assetID]...)
	return nil
}

func (f *fakeAudit) messages(assetID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, entry := range f.entries[assetID] {
		out = append(out, entry.Message)
	}
	return out
}

// fakeMedia records uploads and hands back deterministic URLs.
type fakeMedia struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeMedia) Upload(_ context.Context, objectName string, _ io.Reader, _ int64, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, objectName)
	return "https://media.test/" + objectName, nil
}

func newTestService(fs *fakeStore) (*Service, *fakeAudit, *fakeSessions) {
	audit := &fakeAudit{}
	sessions := newFakeSessions()
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fs,
		sessions: sessions,
		audit:    audit,
		media:    &fakeMedia{},
	}
	return svc, audit, sessions
}

func userLookup(users map[string]store.User) func(context.Context, string) (store.User, error) {
	return func(_ context.Context, id string) (store.User, error) {
		user, ok := users[id]
		if !ok {
			return store.User{}, sql.ErrNoRows
		}
		return user, nil
	}
}

func TestDecodePathDegradesBadJSON(t *testing.T) {
	if got := decodePath(`not json`); got != nil {
		t.Fatalf("expected nil for bad JSON, got %v", got)
	}
	if got := decodePath(""); got != nil {
		t.Fatalf("expected nil for empty path, got %v", got)
	}
	path := decodePath(`[{"x":10,"y":20},{"x":30,"y":40}]`)
	if len(path) != 2 || path[1].X != 30 {
		t.Fatalf("unexpected path %v", path)
	}
}

func TestAnnotationPayloadResolvesKind(t *testing.T) {
	// A legacy record without kind but with an extent reads back as a rect.
	payload := annotationPayload(store.Annotation{
		ID: "ann-1", X: 10, Y: 20, Width: 15, Height: 8, Comment: "logo",
	})
	if payload["kind"] != "rect" {
		t.Fatalf("expected rect, got %v", payload["kind"])
	}

	// A stored freehand surfaces its path.
	payload = annotationPayload(store.Annotation{
		ID: "ann-2", Kind: "freehand", PathJSON: `[{"x":1,"y":2},{"x":3,"y":4}]`,
	})
	if payload["kind"] != "freehand" {
		t.Fatalf("expected freehand, got %v", payload["kind"])
	}
	if _, ok := payload["path"]; !ok {
		t.Fatal("expected path in payload")
	}

	// A freehand whose stored path is corrupt degrades to a point.
	payload = annotationPayload(store.Annotation{
		ID: "ann-3", Kind: "freehand", PathJSON: `{{{`,
	})
	if payload["kind"] != "point" {
		t.Fatalf("expected point after degradation, got %v", payload["kind"])
	}
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0, 10, 50); got != 10 {
		t.Fatalf("expected fallback 10, got %d", got)
	}
	if got := clampLimit(500, 10, 50); got != 50 {
		t.Fatalf("expected cap 50, got %d", got)
	}
	if got := clampLimit(7, 10, 50); got != 7 {
		t.Fatalf("expected passthrough 7, got %d", got)
	}
}

func TestParseDate(t *testing.T) {
	if d, err := parseDate(""); err != nil || d != nil {
		t.Fatalf("empty date should be nil, got %v %v", d, err)
	}
	d, err := parseDate("2026-09-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.September {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := parseDate("15/09/2026"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestSubmitAnnotationRequiresComment(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{})
	_, err := svc.SubmitAnnotation(context.Background(), Session{UserID: "usr-1", Role: "reviewer"}, "ast-1", AnnotationInput{
		X: 10, Y: 20,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSubmitAnnotationAutoCreatesFirstRevision(t *testing.T) {
	var insertedRevision *store.Revision
	var insertedAnnotation *store.Annotation
	fs := &fakeStore{
		getAssetFn: func(_ context.Context, id string) (store.Asset, error) {
			return store.Asset{ID: id, Title: "Banner", Status: "Peer Review", LatestFile: "https://media.test/banner.png", Owner: "usr-owner"}, nil
		},
		insertRevisionFn: func(_ context.Context, r store.Revision) (store.Revision, error) {
			r.Number = 1
			insertedRevision = &r
			return r, nil
		},
		insertAnnotationFn: func(_ context.Context, a store.Annotation) error {
			insertedAnnotation = &a
			return nil
		},
	}
	svc, audit, _ := newTestService(fs)

	session := Session{UserID: "usr-2", UserName: "Priya", Role: "reviewer"}
	payload, err := svc.SubmitAnnotation(context.Background(), session, "ast-1", AnnotationInput{
		X: 40, Y: 55, Comment: "swap the tagline",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insertedRevision == nil {
		t.Fatal("expected a first revision to be auto-created")
	}
	if insertedRevision.MediaURL != "https://media.test/banner.png" {
		t.Fatalf("revision should inherit the asset's latest file, got %q", insertedRevision.MediaURL)
	}
	if insertedAnnotation == nil || insertedAnnotation.Kind != "point" {
		t.Fatalf("expected point annotation, got %+v", insertedAnnotation)
	}
	annotation, ok := payload["annotation"].(map[string]any)
	if !ok {
		t.Fatalf("expected annotation payload, got %v", payload)
	}
	if annotation["kind"] != "point" {
		t.Fatalf("expected point, got %v", annotation["kind"])
	}
	messages := audit.messages("ast-1")
	if len(messages) != 1 || messages[0] != "Annotation: revision 1 (point)" {
		t.Fatalf("unexpected audit messages %v", messages)
	}
}

func TestSubmitAnnotationFreehandKeepsPath(t *testing.T) {
	var inserted *store.Annotation
	fs := &fakeStore{
		getAssetFn: func(_ context.Context, id string) (store.Asset, error) {
			return store.Asset{ID: id, Status: "Peer Review", Owner: "usr-owner"}, nil
		},
		latestRevisionFn: func(_ context.Context, assetID string) (store.Revision, error) {
			return store.Revision{ID: "rev-1", AssetID: assetID, Number: 2}, nil
		},
		insertAnnotationFn: func(_ context.Context, a store.Annotation) error {
			inserted = &a
			return nil
		},
	}
	svc, _, _ := newTestService(fs)

	_, err := svc.SubmitAnnotation(context.Background(), Session{UserID: "usr-2", Role: "reviewer"}, "ast-1", AnnotationInput{
		Kind:    "freehand",
		Path:    []annotator.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}},
		Comment: "trace around the logo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted == nil || inserted.Kind != "freehand" {
		t.Fatalf("expected freehand annotation, got %+v", inserted)
	}
	if inserted.PathJSON == "" {
		t.Fatal("expected path JSON to be stored")
	}
	if inserted.RevisionID != "rev-1" {
		t.Fatalf("expected latest revision id, got %q", inserted.RevisionID)
	}
}

func TestSubmitAnnotationRejectsApprovedAsset(t *testing.T) {
	fs := &fakeStore{
		getAssetFn: func(_ context.Context, id string) (store.Asset, error) {
			return store.Asset{ID: id, Status: "Approved", LatestFile: "x.png"}, nil
		},
	}
	svc, _, _ := newTestService(fs)

	_, err := svc.SubmitAnnotation(context.Background(), Session{UserID: "usr-2", Role: "reviewer"}, "ast-1", AnnotationInput{
		X: 10, Y: 10, Comment: "too late",
	})
	var domainErr *DomainError
	if err == nil || !errors.As(err, &domainErr) || domainErr.Status != 409 {
		t.Fatalf("expected 409 domain error, got %v", err)
	}
}
