package annotator

import (
	"context"
	"path"
	"strings"
)

// API is the full collaborator surface a session needs.
type API interface {
	AnnotationAPI
	WorkflowAPI
	GetAsset(ctx context.Context, assetID string) (Asset, error)
	GetRevisionHistory(ctx context.Context, assetID string) ([]Revision, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

// Capabilities selects optional annotator features. The historical annotator
// shipped in two variants, one with revision history and mentions and one
// without; both are the same component behind these flags.
type Capabilities struct {
	RevisionHistory bool
	Mentions        bool
}

// Session wires capture, the annotation store, and the workflow controller
// together for one mounted asset view. It is created on mount, keyed by
// asset id, and torn down by Close on navigation away.
type Session struct {
	api          API
	capabilities Capabilities

	assetID   string
	asset     Asset
	revisions []Revision

	Capture  *Capture
	Store    *Store
	Workflow *WorkflowController
}

// NewSession builds a session for one asset.
func NewSession(api API, assetID string, capabilities Capabilities) *Session {
	s := &Session{
		api:          api,
		capabilities: capabilities,
		assetID:      assetID,
	}
	s.Store = NewStore(api, assetID)
	s.Capture = NewCapture(s.Store.Stage)
	s.Workflow = NewWorkflowController(api)
	return s
}

// Mount loads the asset, its latest annotation set, and (when the capability
// is enabled) its revision history, then gates capture on what was loaded.
func (s *Session) Mount(ctx context.Context) error {
	asset, err := s.api.GetAsset(ctx, s.assetID)
	if err != nil {
		return err
	}
	s.asset = asset

	if err := s.Store.Load(ctx); err != nil {
		return err
	}
	if s.capabilities.RevisionHistory {
		revisions, err := s.api.GetRevisionHistory(ctx, s.assetID)
		if err != nil {
			return err
		}
		s.revisions = revisions
	}
	s.syncCaptureGate()
	return nil
}

// Asset returns the mounted asset summary.
func (s *Session) Asset() Asset { return s.asset }

// Revisions returns the loaded revision history, newest first. Empty unless
// the RevisionHistory capability is enabled.
func (s *Session) Revisions() []Revision { return s.revisions }

// Capabilities returns the session's feature flags.
func (s *Session) Capabilities() Capabilities { return s.capabilities }

// SwitchRevision changes the viewed revision. The pending draft and any
// in-progress gesture are discarded without confirmation; historical
// revisions load read-only.
func (s *Session) SwitchRevision(ctx context.Context, revision int) error {
	s.Capture.SetEnabled(false)
	if err := s.Store.LoadRevision(ctx, revision); err != nil {
		s.syncCaptureGate()
		return err
	}
	s.syncCaptureGate()
	return nil
}

// MentionMatches resolves an active @-mention query in the comment input.
// Returns nil when the capability is off or no query is active at the caret.
func (s *Session) MentionMatches(ctx context.Context, text string, caret int) ([]User, error) {
	if !s.capabilities.Mentions {
		return nil, nil
	}
	query, ok := mentionQueryAt(text, caret)
	if !ok {
		return nil, nil
	}
	return s.api.SearchUsers(ctx, query)
}

// Close tears down all view state. Nothing survives navigation away.
func (s *Session) Close() {
	s.Capture.SetEnabled(false)
	s.Store.Close()
	s.revisions = nil
	s.asset = Asset{}
}

// syncCaptureGate disables gesture capture for video media (annotations
// apply to static frames only) and for read-only historical revisions.
func (s *Session) syncCaptureGate() {
	mediaURL := s.Store.Set().RevisionFile
	if mediaURL == "" {
		mediaURL = s.asset.MediaURL
	}
	s.Capture.SetEnabled(s.Store.CanAnnotate() && !IsVideoMedia(mediaURL))
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mov": {}, ".m4v": {}, ".avi": {}, ".mkv": {},
}

// IsVideoMedia reports whether a media URL points at a video file, judged by
// extension.
func IsVideoMedia(mediaURL string) bool {
	clean := mediaURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	ext := strings.ToLower(path.Ext(clean))
	_, ok := videoExtensions[ext]
	return ok
}
