// Package assetlog keeps an append-only audit trail per asset as a git
// repository. Every mutation commits a state.json snapshot, so the timeline
// endpoint can replay who changed what and when without a dedicated audit
// table.
package assetlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// State is the snapshot committed for an asset on every change.
type State struct {
	Title      string `json:"title"`
	Campaign   string `json:"campaign"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	LatestFile string `json:"latest_file,omitempty"`
}

// Entry is one audit timeline item.
type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureAssetRepo initializes the audit repo for a new asset. Calling it
// again for an existing asset is a no-op.
func (s *Service) EnsureAssetRepo(assetID string, initial State, author string) error {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(assetID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	hash, err := commitState(repo, path, initial, author, "Created asset")
	if err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// Record commits a new state snapshot with the given audit message, e.g.
// "Modified: title, campaign" or "Workflow: Draft -> Peer Review".
func (s *Service) Record(assetID string, state State, author, message string) (Entry, error) {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(assetID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return Entry{}, fmt.Errorf("open repo: %w", err)
	}

	hash, err := commitState(repo, path, state, author, message)
	if err != nil {
		return Entry{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Entry{}, fmt.Errorf("read commit object: %w", err)
	}
	return toEntry(commitObj), nil
}

// Head returns the latest committed state.
func (s *Service) Head(assetID string) (State, Entry, error) {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(assetID))
	if err != nil {
		return State{}, Entry{}, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return State{}, Entry{}, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return State{}, Entry{}, fmt.Errorf("load commit object: %w", err)
	}
	state, err := readStateFromCommit(commitObj)
	if err != nil {
		return State{}, Entry{}, err
	}
	return state, toEntry(commitObj), nil
}

// History returns the newest-first audit timeline, at most limit entries.
func (s *Service) History(assetID string, limit int) ([]Entry, error) {
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(assetID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toEntry(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ChangeMessage summarizes a metadata edit as "Modified: field, field". The
// empty string means nothing changed.
func ChangeMessage(from, to State) string {
	type pair struct {
		field  string
		before string
		after  string
	}
	pairs := []pair{
		{field: "title", before: from.Title, after: to.Title},
		{field: "campaign", before: from.Campaign, after: to.Campaign},
		{field: "category", before: from.Category, after: to.Category},
		{field: "status", before: from.Status, after: to.Status},
		{field: "expiry_date", before: from.ExpiryDate, after: to.ExpiryDate},
		{field: "latest_file", before: from.LatestFile, after: to.LatestFile},
	}
	var changed []string
	for _, item := range pairs {
		if item.before != item.after {
			changed = append(changed, item.field)
		}
	}
	if len(changed) == 0 {
		return ""
	}
	sort.Strings(changed)
	return "Modified: " + strings.Join(changed, ", ")
}

// WorkflowMessage formats a state machine transition for the timeline.
func WorkflowMessage(fromState, action, nextState string) string {
	return fmt.Sprintf("Workflow: %s -> %s (%s)", fromState, nextState, action)
}

// UploadMessage formats a revision upload for the timeline.
func UploadMessage(number int, filename string) string {
	return fmt.Sprintf("Upload: revision %d (%s)", number, filename)
}

func (s *Service) repoPath(assetID string) string {
	return filepath.Join(s.baseDir, assetID)
}

func (s *Service) assetLock(assetID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[assetID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[assetID] = lock
	return lock
}

func commitState(repo *git.Repository, repoRoot string, state State, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "state.json"), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write state.json: %w", err)
	}
	if _, err := worktree.Add("state.json"); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add state: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.lightbox.dev", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit state: %w", err)
	}
	return hash, nil
}

func readStateFromCommit(commitObj *object.Commit) (State, error) {
	file, err := commitObj.File("state.json")
	if err != nil {
		return State{}, fmt.Errorf("load state.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return State{}, fmt.Errorf("open state reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return State{}, fmt.Errorf("read state bytes: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode commit state: %w", err)
	}
	return state, nil
}

func toEntry(commitObj *object.Commit) Entry {
	return Entry{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimRight(commitObj.Message, "\n"),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
