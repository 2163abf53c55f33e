package annotator

import (
	"context"
	"strings"
)

// AnnotationAPI is the persistence collaborator the store talks to. revision
// 0 means the latest revision.
type AnnotationAPI interface {
	GetAnnotations(ctx context.Context, assetID string, revision int) (Set, error)
	SubmitAnnotation(ctx context.Context, assetID string, draft Draft, comment string) error
}

// Store owns the annotation view model for one mounted asset view: the
// persisted set for the viewed revision, the single pending draft, and the
// single hover id shared by the overlay and the sidebar list. It is not
// goroutine-safe; callers drive it from the interaction loop.
type Store struct {
	api     AnnotationAPI
	assetID string

	set        Set
	loaded     bool
	pending    *Draft
	hoverID    string
	submitting bool

	// OnChange fires after any state mutation so both views rerender from
	// this store. OnStaged fires when a draft is staged so the UI can focus
	// the comment input. OnPendingDiscarded fires when a pending draft is
	// dropped without being submitted.
	OnChange           func()
	OnStaged           func()
	OnPendingDiscarded func()
}

// NewStore builds a store bound to one asset.
func NewStore(api AnnotationAPI, assetID string) *Store {
	return &Store{api: api, assetID: assetID}
}

// Load fetches the latest revision's annotation set.
func (s *Store) Load(ctx context.Context) error {
	return s.LoadRevision(ctx, 0)
}

// LoadRevision fetches the set for a specific revision (0 = latest). The
// pending draft and hover state are discarded only when the fetched set is a
// different revision than the loaded one, so a refresh of the current
// revision (including Load while already viewing the latest) keeps the
// user's draft. The fetched set's CanAnnotate flag gates further capture.
func (s *Store) LoadRevision(ctx context.Context, revision int) error {
	set, err := s.api.GetAnnotations(ctx, s.assetID, revision)
	if err != nil {
		s.notify()
		return err
	}
	if s.loaded && set.RevisionNumber != s.set.RevisionNumber {
		s.discardPending()
		s.hoverID = ""
	}
	s.set = set
	s.loaded = true
	s.notify()
	return nil
}

// Set returns the currently loaded annotation set.
func (s *Store) Set() Set { return s.set }

// CanAnnotate reports whether the viewed revision accepts new annotations.
func (s *Store) CanAnnotate() bool { return s.loaded && s.set.CanAnnotate }

// Pending returns the staged draft, or nil.
func (s *Store) Pending() *Draft {
	if s.pending == nil {
		return nil
	}
	draft := *s.pending
	return &draft
}

// Stage replaces any existing pending draft with a newly captured one and
// requests comment-input focus via OnStaged.
func (s *Store) Stage(draft Draft) {
	if !s.CanAnnotate() {
		return
	}
	s.pending = &draft
	if s.OnStaged != nil {
		s.OnStaged()
	}
	s.notify()
}

// ClearPending discards the pending draft unconditionally. There is no undo.
func (s *Store) ClearPending() {
	s.discardPending()
	s.notify()
}

// Submitting reports whether a submission is outstanding.
func (s *Store) Submitting() bool { return s.submitting }

// Submit persists the pending draft with the given comment, then reloads the
// authoritative set: the server assigns id, author, and timestamp, so the
// post-condition is always a fresh fetch, never an optimistic insert.
//
// An empty trimmed comment is rejected before any network call. With no draft
// staged, a centered point is submitted, supporting a general comment without
// a specific mark. On failure the pending draft is preserved for retry.
func (s *Store) Submit(ctx context.Context, comment string) error {
	if s.submitting {
		return ErrSubmitInFlight
	}
	if !s.CanAnnotate() {
		return ErrReadOnlyRevision
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ErrEmptyComment
	}

	draft := Draft{Kind: KindPoint, Anchor: Point{X: 50, Y: 50}}
	if s.pending != nil {
		draft = *s.pending
	}

	s.submitting = true
	s.notify()
	err := s.api.SubmitAnnotation(ctx, s.assetID, draft, comment)
	s.submitting = false
	if err != nil {
		s.notify()
		return err
	}

	s.pending = nil
	return s.LoadRevision(ctx, s.set.RevisionNumber)
}

// SetHover sets the shared hover id; the empty string clears it. The overlay
// and the list both read this single value.
func (s *Store) SetHover(id string) {
	if s.hoverID == id {
		return
	}
	s.hoverID = id
	s.notify()
}

// Hover returns the hovered annotation id, or "".
func (s *Store) Hover() string { return s.hoverID }

// Close tears down the view state when the annotator unmounts.
func (s *Store) Close() {
	s.discardPending()
	s.hoverID = ""
	s.set = Set{}
	s.loaded = false
}

func (s *Store) discardPending() {
	if s.pending == nil {
		return
	}
	s.pending = nil
	if s.OnPendingDiscarded != nil {
		s.OnPendingDiscarded()
	}
}

func (s *Store) notify() {
	if s.OnChange != nil {
		s.OnChange()
	}
}
