package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"lightbox/api/internal/annotator"
	"lightbox/api/internal/assetlog"
	"lightbox/api/internal/auth"
	"lightbox/api/internal/authpw"
	"lightbox/api/internal/config"
	"lightbox/api/internal/email"
	"lightbox/api/internal/export"
	"lightbox/api/internal/media"
	"lightbox/api/internal/rbac"
	"lightbox/api/internal/search"
	"lightbox/api/internal/store"
	"lightbox/api/internal/util"
	"lightbox/api/internal/workflow"
)

// Session is an authenticated caller. Token and RefreshToken are only set on
// issuance; lookups from a bearer token leave RefreshToken empty.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// CreateAssetInput carries the multipart create-asset form. Upload is the
// media file; an asset is never created without one.
type CreateAssetInput struct {
	Title      string
	Campaign   string
	Category   string
	ProjectID  string
	ExpiryDate string
	Upload     *UploadRevisionInput
}

func (in CreateAssetInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Campaign, validation.Length(0, 200)),
		validation.Field(&in.Category, validation.Length(0, 100)),
		validation.Field(&in.ExpiryDate, validation.Date("2006-01-02")),
	)
}

// UpdateAssetInput carries editable asset metadata.
type UpdateAssetInput struct {
	Title      string `json:"title"`
	Campaign   string `json:"campaign"`
	Category   string `json:"category"`
	ExpiryDate string `json:"expiryDate"`
}

func (in UpdateAssetInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Campaign, validation.Length(0, 200)),
		validation.Field(&in.Category, validation.Length(0, 100)),
		validation.Field(&in.ExpiryDate, validation.Date("2006-01-02")),
	)
}

// UploadRevisionInput is one uploaded media file plus its revision notes.
type UploadRevisionInput struct {
	Filename    string
	ContentType string
	Size        int64
	Notes       string
	File        io.Reader
}

// AnnotationInput is the wire shape of a submitted annotation. Coordinates
// are percent-space; kind may be empty and is then inferred from the extent
// and path.
type AnnotationInput struct {
	Kind    string            `json:"kind"`
	X       float64           `json:"x"`
	Y       float64           `json:"y"`
	Width   float64           `json:"width"`
	Height  float64           `json:"height"`
	Path    []annotator.Point `json:"path"`
	Comment string            `json:"comment"`
}

func (in AnnotationInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Comment, validation.Required, validation.Length(1, 2000)),
		validation.Field(&in.X, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.Y, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.Width, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.Height, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&in.Kind, validation.In("", "point", "rect", "freehand")),
	)
}

// CreateProjectInput carries the create-project form.
type CreateProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

func (in CreateProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
		validation.Field(&in.DueDate, validation.Date("2006-01-02")),
	)
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	SearchUsers(context.Context, string, int) ([]store.User, error)
	ListProjects(context.Context) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	ProjectAssets(context.Context, string) ([]store.Asset, error)
	ProjectStatusCounts(context.Context, string) ([]store.StatusCount, error)
	InsertAsset(context.Context, store.Asset) error
	GetAsset(context.Context, string) (store.Asset, error)
	ListAssets(context.Context, string, string, int) ([]store.Asset, error)
	RecentAssets(context.Context, int) ([]store.Asset, error)
	UpdateAssetMeta(context.Context, string, string, string, string, *time.Time) error
	UpdateAssetStatus(context.Context, string, string) error
	CountAssetsByStatus(context.Context) ([]store.StatusCount, error)
	InsertRevision(context.Context, store.Revision) (store.Revision, error)
	ListRevisions(context.Context, string) ([]store.Revision, error)
	GetRevision(context.Context, string, int) (store.Revision, error)
	LatestRevision(context.Context, string) (store.Revision, error)
	RecentUploads(context.Context, int) ([]store.UploadEntry, error)
	InsertAnnotation(context.Context, store.Annotation) error
	ListAnnotationsByRevision(context.Context, string) ([]store.Annotation, error)
	ListTransitionsFrom(context.Context, string) ([]store.WorkflowTransition, error)
	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) (bool, error)
	MarkAllNotificationsRead(context.Context, string) error
	UnreadNotificationCount(context.Context, string) (int, error)
	SummaryCounts(context.Context) (int, int, int, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type auditLog interface {
	EnsureAssetRepo(assetID string, initial assetlog.State, author string) error
	Record(assetID string, state assetlog.State, author, message string) (assetlog.Entry, error)
	History(assetID string, limit int) ([]assetlog.Entry, error)
}

type mediaStore interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	audit    auditLog
	media    mediaStore
	search   *search.Service
	exporter *export.Service
	mailer   *email.Service
	authpw   *authpw.Service
}

func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	sessions sessionStore,
	audit *assetlog.Service,
	mediaStore mediaStore,
	searchService *search.Service,
	exporter *export.Service,
	mailer *email.Service,
	authService *authpw.Service,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		audit:    audit,
		media:    mediaStore,
		search:   searchService,
		exporter: exporter,
		mailer:   mailer,
		authpw:   authService,
	}
}

func (s *Service) AuthPasswordService() *authpw.Service { return s.authpw }

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// CreateSession issues tokens for a user that already passed credential
// checks.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.DisplayName, user.Email, user.Role, jti, s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// DashboardSummary aggregates asset counts for the landing view.
func (s *Service) DashboardSummary(ctx context.Context) (map[string]any, error) {
	total, inReview, approved, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountAssetsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	statusCounts := make([]map[string]any, 0, len(counts))
	for _, c := range counts {
		statusCounts = append(statusCounts, map[string]any{"status": c.Status, "count": c.Count})
	}
	return map[string]any{
		"totalAssets":  total,
		"inReview":     inReview,
		"approved":     approved,
		"statusCounts": statusCounts,
	}, nil
}

func (s *Service) RecentAssets(ctx context.Context, limit int) ([]map[string]any, error) {
	assets, err := s.store.RecentAssets(ctx, clampLimit(limit, 10, 50))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(assets))
	for _, a := range assets {
		items = append(items, assetPayload(a))
	}
	return items, nil
}

func (s *Service) RecentUploads(ctx context.Context, limit int) ([]map[string]any, error) {
	uploads, err := s.store.RecentUploads(ctx, clampLimit(limit, 10, 50))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, map[string]any{
			"assetId":    u.AssetID,
			"assetTitle": u.AssetTitle,
			"mediaUrl":   u.MediaURL,
			"notes":      u.Notes,
			"owner":      u.Owner,
			"createdAt":  u.CreatedAt,
		})
	}
	return items, nil
}

// Search runs the grouped asset/project search. An empty query returns empty
// groups without touching the backends.
func (s *Service) Search(ctx context.Context, q, filterType, status, campaign string, limit, offset int) (map[string]any, error) {
	text := strings.TrimSpace(q)
	if text == "" {
		return map[string]any{"query": "", "total": 0, "assets": []search.Result{}, "projects": []search.Result{}}, nil
	}
	if s.search == nil {
		return nil, domainError(503, "SEARCH_UNAVAILABLE", "Search backend not configured", nil)
	}

	resp := s.search.Search(search.Query{
		Text:           text,
		FilterType:     search.ResultType(filterType),
		FilterStatus:   status,
		FilterCampaign: campaign,
		Limit:          clampLimit(limit, 20, 50),
		Offset:         offset,
	})

	assets := make([]search.Result, 0, len(resp.Results))
	projects := make([]search.Result, 0)
	for _, result := range resp.Results {
		if result.Type == search.ResultProject {
			projects = append(projects, result)
			continue
		}
		assets = append(assets, result)
	}
	return map[string]any{
		"query":    resp.Query,
		"total":    resp.Total,
		"assets":   assets,
		"projects": projects,
	}, nil
}

func (s *Service) ListAssets(ctx context.Context, status, campaign string, limit int) ([]map[string]any, error) {
	assets, err := s.store.ListAssets(ctx, status, campaign, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(assets))
	for _, a := range assets {
		items = append(items, assetPayload(a))
	}
	return items, nil
}

// CreateAsset registers a new asset in Draft with its first media revision.
func (s *Service) CreateAsset(ctx context.Context, session Session, in CreateAssetInput) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Upload == nil || in.Upload.File == nil {
		return nil, domainError(422, "VALIDATION_ERROR", "media file is required", nil)
	}
	if s.media == nil {
		return nil, domainError(503, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}

	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return nil, domainError(422, "VALIDATION_ERROR", "expiryDate must be YYYY-MM-DD", nil)
	}

	asset := store.Asset{
		ID:         util.NewID("ast"),
		Title:      strings.TrimSpace(in.Title),
		Campaign:   strings.TrimSpace(in.Campaign),
		Category:   strings.TrimSpace(in.Category),
		Status:     workflow.StateDraft,
		Owner:      session.UserID,
		ExpiryDate: expiry,
	}
	if projectID := strings.TrimSpace(in.ProjectID); projectID != "" {
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return nil, err
		}
		asset.ProjectID = &projectID
	}
	if err := s.store.InsertAsset(ctx, asset); err != nil {
		return nil, err
	}

	revision, err := s.storeUpload(ctx, session, asset, 1, *in.Upload)
	if err != nil {
		return nil, err
	}
	asset.LatestFile = revision.MediaURL

	if s.audit != nil {
		if err := s.audit.EnsureAssetRepo(asset.ID, assetState(asset), session.UserName); err != nil {
			return nil, err
		}
	}
	s.indexAsset(asset)

	payload := assetPayload(asset)
	payload["revisionNumber"] = revision.Number
	return map[string]any{"asset": payload}, nil
}

func (s *Service) GetAssetDetail(ctx context.Context, session Session, assetID string) (map[string]any, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	revisions, err := s.revisionPayloads(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defs, err := s.store.ListTransitionsFrom(ctx, asset.Status)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"asset":     assetPayload(asset),
		"revisions": revisions,
		"workflow": map[string]any{
			"currentState": asset.Status,
			"transitions":  workflow.Options(defs, session.Role),
		},
	}, nil
}

func (s *Service) UpdateAsset(ctx context.Context, session Session, assetID string, in UpdateAssetInput) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	before, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return nil, domainError(422, "VALIDATION_ERROR", "expiryDate must be YYYY-MM-DD", nil)
	}

	if err := s.store.UpdateAssetMeta(ctx, assetID, strings.TrimSpace(in.Title), strings.TrimSpace(in.Campaign), strings.TrimSpace(in.Category), expiry); err != nil {
		return nil, err
	}
	after, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if message := assetlog.ChangeMessage(assetState(before), assetState(after)); message != "" {
			if _, err := s.audit.Record(assetID, assetState(after), session.UserName, message); err != nil {
				return nil, err
			}
		}
	}
	s.indexAsset(after)

	return map[string]any{"asset": assetPayload(after)}, nil
}

func (s *Service) ListAssetRevisions(ctx context.Context, assetID string) (map[string]any, error) {
	if _, err := s.store.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	revisions, err := s.revisionPayloads(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"revisions": revisions}, nil
}

// UploadRevision stores a new media file as the asset's next revision. The
// asset's latest file follows the newest revision.
func (s *Service) UploadRevision(ctx context.Context, session Session, assetID string, in UploadRevisionInput) (map[string]any, error) {
	if in.File == nil || strings.TrimSpace(in.Filename) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "media file is required", nil)
	}
	if s.media == nil {
		return nil, domainError(503, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status == workflow.StateApproved {
		return nil, domainError(409, "READ_ONLY", "Approved assets accept no new revisions", nil)
	}

	next := 1
	if latest, err := s.store.LatestRevision(ctx, assetID); err == nil {
		next = latest.Number + 1
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	revision, err := s.storeUpload(ctx, session, asset, next, in)
	if err != nil {
		return nil, err
	}
	asset.LatestFile = revision.MediaURL

	if s.audit != nil {
		message := assetlog.UploadMessage(revision.Number, in.Filename)
		if _, err := s.audit.Record(assetID, assetState(asset), session.UserName, message); err != nil {
			return nil, err
		}
	}
	s.indexAsset(asset)
	s.notifyOwner(ctx, asset, session, "revision", fmt.Sprintf("%s uploaded revision %d of %q", session.UserName, revision.Number, asset.Title))

	return map[string]any{"revision": revisionPayload(revision)}, nil
}

func (s *Service) storeUpload(ctx context.Context, session Session, asset store.Asset, number int, in UploadRevisionInput) (store.Revision, error) {
	objectName := media.ObjectName(asset.ID, number, in.Filename)
	contentType := in.ContentType
	if contentType == "" {
		contentType = media.ContentType(in.Filename)
	}
	mediaURL, err := s.media.Upload(ctx, objectName, in.File, in.Size, contentType)
	if err != nil {
		return store.Revision{}, fmt.Errorf("upload media: %w", err)
	}

	return s.store.InsertRevision(ctx, store.Revision{
		ID:       util.NewID("rev"),
		AssetID:  asset.ID,
		MediaURL: mediaURL,
		Notes:    strings.TrimSpace(in.Notes),
		Owner:    session.UserID,
	})
}

// GetAnnotations returns the annotation set for one revision (0 = latest).
// Only the latest revision of an unapproved asset accepts new annotations.
func (s *Service) GetAnnotations(ctx context.Context, session Session, assetID string, revisionNumber int) (map[string]any, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestRevision(ctx, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{
			"assetId":        asset.ID,
			"revisionNumber": 0,
			"revisionFile":   asset.LatestFile,
			"status":         asset.Status,
			"canAnnotate":    s.canAnnotate(session, asset, true),
			"annotations":    []map[string]any{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	revision := latest
	if revisionNumber > 0 && revisionNumber != latest.Number {
		revision, err = s.store.GetRevision(ctx, assetID, revisionNumber)
		if err != nil {
			return nil, err
		}
	}

	records, err := s.store.ListAnnotationsByRevision(ctx, revision.ID)
	if err != nil {
		return nil, err
	}
	annotations := make([]map[string]any, 0, len(records))
	for _, record := range records {
		annotations = append(annotations, annotationPayload(record))
	}

	return map[string]any{
		"assetId":        asset.ID,
		"revisionNumber": revision.Number,
		"revisionFile":   revision.MediaURL,
		"status":         asset.Status,
		"canAnnotate":    s.canAnnotate(session, asset, revision.Number == latest.Number),
		"annotations":    annotations,
	}, nil
}

func (s *Service) canAnnotate(session Session, asset store.Asset, isLatest bool) bool {
	if !isLatest || asset.Status == workflow.StateApproved {
		return false
	}
	return s.Can(session.Role, rbac.ActionAnnotate)
}

// SubmitAnnotation validates and persists one annotation against the asset's
// latest revision. Assets that predate revision tracking get a first revision
// auto-created from their latest file.
func (s *Service) SubmitAnnotation(ctx context.Context, session Session, assetID string, in AnnotationInput) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status == workflow.StateApproved {
		return nil, domainError(409, "READ_ONLY", "Approved assets accept no new annotations", nil)
	}

	revision, err := s.store.LatestRevision(ctx, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		if asset.LatestFile == "" {
			return nil, domainError(409, "NO_MEDIA", "Asset has no media to annotate", nil)
		}
		revision, err = s.store.InsertRevision(ctx, store.Revision{
			ID:       util.NewID("rev"),
			AssetID:  asset.ID,
			MediaURL: asset.LatestFile,
			Owner:    asset.Owner,
		})
	}
	if err != nil {
		return nil, err
	}

	kind := annotator.ResolveKind(in.Kind, annotator.Size{Width: in.Width, Height: in.Height}, in.Path)

	record := store.Annotation{
		ID:         util.NewID("ann"),
		RevisionID: revision.ID,
		Kind:       string(kind),
		X:          in.X,
		Y:          in.Y,
		Comment:    strings.TrimSpace(in.Comment),
		Author:     session.UserID,
	}
	switch kind {
	case annotator.KindRect:
		record.Width = in.Width
		record.Height = in.Height
	case annotator.KindFreehand:
		encoded, err := json.Marshal(in.Path)
		if err != nil {
			return nil, fmt.Errorf("encode path: %w", err)
		}
		record.PathJSON = string(encoded)
	}
	if err := s.store.InsertAnnotation(ctx, record); err != nil {
		return nil, err
	}

	if s.audit != nil {
		message := fmt.Sprintf("Annotation: revision %d (%s)", revision.Number, kind)
		if _, err := s.audit.Record(assetID, assetState(asset), session.UserName, message); err != nil {
			return nil, err
		}
	}
	s.notifyOwner(ctx, asset, session, "annotation", fmt.Sprintf("%s annotated %q", session.UserName, asset.Title))

	record.AuthorName = session.UserName
	record.CreatedAt = time.Now()
	return map[string]any{"annotation": annotationPayload(record)}, nil
}

// WorkflowState reports the asset's status and the actions the caller's role
// may take from it.
func (s *Service) WorkflowState(ctx context.Context, session Session, assetID string) (map[string]any, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defs, err := s.store.ListTransitionsFrom(ctx, asset.Status)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"currentState": asset.Status,
		"transitions":  workflow.Options(defs, session.Role),
	}, nil
}

// ApplyWorkflowAction moves the asset along the state machine. Legality is
// decided here against the transition rows, never trusted from the client.
func (s *Service) ApplyWorkflowAction(ctx context.Context, session Session, assetID, action string) (map[string]any, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defs, err := s.store.ListTransitionsFrom(ctx, asset.Status)
	if err != nil {
		return nil, err
	}
	def, err := workflow.Resolve(defs, session.Role, strings.TrimSpace(action))
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateAssetStatus(ctx, assetID, def.NextState); err != nil {
		return nil, err
	}
	previous := asset.Status
	asset.Status = def.NextState

	if s.audit != nil {
		message := assetlog.WorkflowMessage(previous, def.Action, def.NextState)
		if _, err := s.audit.Record(assetID, assetState(asset), session.UserName, message); err != nil {
			return nil, err
		}
	}
	s.indexAsset(asset)
	s.notifyOwner(ctx, asset, session, "workflow", fmt.Sprintf("%s moved %q to %s", session.UserName, asset.Title, def.NextState))

	nextDefs, err := s.store.ListTransitionsFrom(ctx, def.NextState)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"currentState": def.NextState,
		"transitions":  workflow.Options(nextDefs, session.Role),
	}, nil
}

func (s *Service) ListProjects(ctx context.Context) (map[string]any, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		counts, err := s.store.ProjectStatusCounts(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, projectPayload(project, counts))
	}
	return map[string]any{"projects": items}, nil
}

func (s *Service) GetProjectDetail(ctx context.Context, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ProjectAssets(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ProjectStatusCounts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	assetItems := make([]map[string]any, 0, len(assets))
	for _, a := range assets {
		assetItems = append(assetItems, assetPayload(a))
	}
	payload := projectPayload(project, counts)
	payload["assets"] = assetItems
	return map[string]any{"project": payload}, nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, in CreateProjectInput) (map[string]any, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	due, err := parseDate(in.DueDate)
	if err != nil {
		return nil, domainError(422, "VALIDATION_ERROR", "dueDate must be YYYY-MM-DD", nil)
	}
	project := store.Project{
		ID:          util.NewID("prj"),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      "Active",
		DueDate:     due,
		Owner:       session.UserID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID:          project.ID,
			Title:       project.Title,
			Description: project.Description,
			Status:      project.Status,
		})
	}
	return map[string]any{"project": projectPayload(project, nil)}, nil
}

func (s *Service) Notifications(ctx context.Context, session Session, limit int) (map[string]any, error) {
	records, err := s.store.ListNotifications(ctx, session.UserID, clampLimit(limit, 20, 50))
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadNotificationCount(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, map[string]any{
			"id":        record.ID,
			"subject":   record.Subject,
			"kind":      record.Kind,
			"assetId":   record.AssetID,
			"fromUser":  record.FromUser,
			"read":      record.Read,
			"createdAt": record.CreatedAt,
		})
	}
	return map[string]any{"notifications": items, "unread": unread}, nil
}

// MarkNotificationsRead marks one notification (by id) or all of them.
func (s *Service) MarkNotificationsRead(ctx context.Context, session Session, notificationID string, all bool) error {
	if all {
		return s.store.MarkAllNotificationsRead(ctx, session.UserID)
	}
	if strings.TrimSpace(notificationID) == "" {
		return domainError(422, "VALIDATION_ERROR", "id or all is required", nil)
	}
	ok, err := s.store.MarkNotificationRead(ctx, session.UserID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(404, "NOT_FOUND", "Notification not found", nil)
	}
	return nil
}

// Audit returns the asset's timeline, newest first, optionally filtered by
// event prefix ("Workflow", "Upload", "Modified", "Annotation").
func (s *Service) Audit(ctx context.Context, assetID, actionFilter string, limit int) (map[string]any, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "asset is required", nil)
	}
	if _, err := s.store.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return map[string]any{"entries": []assetlog.Entry{}}, nil
	}

	entries, err := s.audit.History(assetID, clampLimit(limit, 50, 100))
	if err != nil {
		return nil, err
	}
	filter := strings.ToLower(strings.TrimSpace(actionFilter))
	filtered := make([]assetlog.Entry, 0, len(entries))
	for _, entry := range entries {
		if filter != "" && !strings.HasPrefix(strings.ToLower(entry.Message), filter) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return map[string]any{"entries": filtered}, nil
}

func (s *Service) SearchUsersForMention(ctx context.Context, query string, limit int) (map[string]any, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return map[string]any{"users": []map[string]any{}}, nil
	}
	users, err := s.store.SearchUsers(ctx, text, clampLimit(limit, 10, 25))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":          user.ID,
			"displayName": user.DisplayName,
			"email":       user.Email,
		})
	}
	return map[string]any{"users": items}, nil
}

// ExportAsset renders one revision's review sheet as PDF or DOCX.
func (s *Service) ExportAsset(ctx context.Context, session Session, assetID string, revisionNumber int, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(503, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	revision, err := s.store.LatestRevision(ctx, assetID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if revisionNumber > 0 && revisionNumber != revision.Number {
		revision, err = s.store.GetRevision(ctx, assetID, revisionNumber)
		if err != nil {
			return nil, err
		}
	}

	var records []store.Annotation
	if revision.ID != "" {
		records, err = s.store.ListAnnotationsByRevision(ctx, revision.ID)
		if err != nil {
			return nil, err
		}
	}

	scene := annotator.Scene{}
	rows := make([]export.SheetAnnotation, 0, len(records))
	for i, record := range records {
		path := decodePath(record.PathJSON)
		kind := annotator.ResolveKind(record.Kind, annotator.Size{Width: record.Width, Height: record.Height}, path)
		scene.Shapes = append(scene.Shapes, annotator.Shape{
			ID:      record.ID,
			Role:    annotator.ShapeSaved,
			Kind:    kind,
			Anchor:  annotator.Point{X: record.X, Y: record.Y},
			Extent:  annotator.Size{Width: record.Width, Height: record.Height},
			Path:    path,
			Tooltip: fmt.Sprintf("%s: %s", record.AuthorName, record.Comment),
		})
		rows = append(rows, export.SheetAnnotation{
			Index:     i + 1,
			Kind:      string(kind),
			Author:    record.AuthorName,
			Comment:   record.Comment,
			Position:  export.FormatPosition(string(kind), record.X, record.Y, record.Width, record.Height),
			CreatedAt: record.CreatedAt,
		})
	}

	var overlay bytes.Buffer
	if err := scene.WriteSVG(&overlay); err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}

	mediaURL := revision.MediaURL
	if mediaURL == "" {
		mediaURL = asset.LatestFile
	}
	sheet := export.ReviewSheet{
		AssetTitle:     asset.Title,
		Campaign:       asset.Campaign,
		Category:       asset.Category,
		Status:         asset.Status,
		RevisionNumber: revision.Number,
		MediaURL:       mediaURL,
		OverlaySVG:     template.HTML(overlay.String()),
		Annotations:    rows,
		GeneratedAt:    time.Now(),
		GeneratedBy:    session.UserName,
	}
	return s.exporter.Export(sheet, format)
}

func (s *Service) revisionPayloads(ctx context.Context, assetID string) ([]map[string]any, error) {
	revisions, err := s.store.ListRevisions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, revision := range revisions {
		items = append(items, revisionPayload(revision))
	}
	return items, nil
}

func (s *Service) indexAsset(asset store.Asset) {
	if s.search == nil {
		return
	}
	record := search.AssetRecord{
		ID:       asset.ID,
		Title:    asset.Title,
		Campaign: asset.Campaign,
		Category: asset.Category,
		Status:   asset.Status,
		MediaURL: asset.LatestFile,
	}
	if asset.ProjectID != nil {
		record.ProjectID = *asset.ProjectID
	}
	s.search.IndexAsset(record)
}

// SendPasswordReset mails the reset link when SMTP is configured. The caller
// already treats unknown emails as a silent success.
func (s *Service) SendPasswordReset(ctx context.Context, emailAddr, token string) {
	if token == "" || !s.SMTPConfigured() {
		return
	}
	resetURL := "/reset-password?token=" + token
	go func() {
		_ = s.mailer.SendPasswordResetEmail(emailAddr, emailAddr, resetURL)
	}()
}

// notifyOwner records an in-app notification for the asset owner and, when
// SMTP is configured, mails a copy. Self-notifications are skipped.
func (s *Service) notifyOwner(ctx context.Context, asset store.Asset, from Session, kind, subject string) {
	if asset.Owner == "" || asset.Owner == from.UserID {
		return
	}
	_ = s.store.InsertNotification(ctx, store.Notification{
		ID:       util.NewID("ntf"),
		UserID:   asset.Owner,
		Subject:  subject,
		Kind:     kind,
		AssetID:  asset.ID,
		FromUser: from.UserName,
	})
	if !s.SMTPConfigured() {
		return
	}
	owner, err := s.store.GetUserByID(ctx, asset.Owner)
	if err != nil || owner.Email == "" {
		return
	}
	go func() {
		_ = s.mailer.SendNotificationEmail(owner.Email, owner.DisplayName, subject, asset.Title, from.UserName, "/assets/"+asset.ID)
	}()
}

func assetPayload(a store.Asset) map[string]any {
	payload := map[string]any{
		"id":       a.ID,
		"title":    a.Title,
		"campaign": a.Campaign,
		"category": a.Category,
		"status":   a.Status,
		"mediaUrl": a.LatestFile,
		"owner":    a.Owner,
	}
	if a.ProjectID != nil {
		payload["projectId"] = *a.ProjectID
	}
	if a.ExpiryDate != nil {
		payload["expiryDate"] = a.ExpiryDate.Format("2006-01-02")
	}
	if !a.UpdatedAt.IsZero() {
		payload["updatedAt"] = a.UpdatedAt
	}
	return payload
}

func revisionPayload(r store.Revision) map[string]any {
	return map[string]any{
		"revisionNumber": r.Number,
		"mediaUrl":       r.MediaURL,
		"notes":          r.Notes,
		"owner":          r.Owner,
		"createdAt":      r.CreatedAt,
	}
}

func projectPayload(p store.Project, counts []store.StatusCount) map[string]any {
	payload := map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"description": p.Description,
		"status":      p.Status,
		"owner":       p.Owner,
	}
	if p.DueDate != nil {
		payload["dueDate"] = p.DueDate.Format("2006-01-02")
	}
	if counts != nil {
		statusCounts := make([]map[string]any, 0, len(counts))
		for _, c := range counts {
			statusCounts = append(statusCounts, map[string]any{"status": c.Status, "count": c.Count})
		}
		payload["statusCounts"] = statusCounts
	}
	return payload
}

// annotationPayload is the flat wire shape: x/y/width/height at top level
// with the kind resolved at read time for records that predate the field.
func annotationPayload(a store.Annotation) map[string]any {
	path := decodePath(a.PathJSON)
	kind := annotator.ResolveKind(a.Kind, annotator.Size{Width: a.Width, Height: a.Height}, path)
	payload := map[string]any{
		"id":         a.ID,
		"kind":       string(kind),
		"x":          a.X,
		"y":          a.Y,
		"width":      a.Width,
		"height":     a.Height,
		"comment":    a.Comment,
		"author":     a.Author,
		"authorName": a.AuthorName,
		"timestamp":  a.CreatedAt,
	}
	if kind == annotator.KindFreehand && len(path) > 0 {
		payload["path"] = path
	}
	return payload
}

// decodePath parses a stored freehand path. Bad JSON degrades to nil so the
// record renders as a point rather than failing the whole set.
func decodePath(pathJSON string) []annotator.Point {
	if strings.TrimSpace(pathJSON) == "" {
		return nil
	}
	var path []annotator.Point
	if err := json.Unmarshal([]byte(pathJSON), &path); err != nil {
		return nil
	}
	return path
}

func assetState(a store.Asset) assetlog.State {
	state := assetlog.State{
		Title:      a.Title,
		Campaign:   a.Campaign,
		Category:   a.Category,
		Status:     a.Status,
		LatestFile: a.LatestFile,
	}
	if a.ExpiryDate != nil {
		state.ExpiryDate = a.ExpiryDate.Format("2006-01-02")
	}
	return state
}

func parseDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func clampLimit(requested, fallback, max int) int {
	if requested <= 0 {
		return fallback
	}
	if requested > max {
		return max
	}
	return requested
}
