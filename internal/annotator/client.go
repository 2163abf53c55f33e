package annotator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenSource supplies the bearer token for authenticated calls. Injected
// rather than read from a global so embedders control session handling.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource over a fixed token string.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client talks to the Lightbox API. It implements AnnotationAPI, WorkflowAPI,
// and UserSearchAPI for the annotator session.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewClient builds a client for the API at baseURL. httpClient may be nil.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
	}
}

// GetAsset fetches the asset summary.
func (c *Client) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var out struct {
		Asset Asset `json:"asset"`
	}
	err := c.getJSON(ctx, "/api/assets/"+url.PathEscape(assetID), nil, &out)
	return out.Asset, err
}

// GetAnnotations fetches the annotation set for a revision (0 = latest).
// Kind resolution happens here, at the ingestion boundary: records from older
// deployments may lack the kind field entirely.
func (c *Client) GetAnnotations(ctx context.Context, assetID string, revision int) (Set, error) {
	query := url.Values{}
	if revision > 0 {
		query.Set("revision", strconv.Itoa(revision))
	}
	var out struct {
		AssetID        string             `json:"assetId"`
		RevisionNumber int                `json:"revisionNumber"`
		RevisionFile   string             `json:"revisionFile"`
		Status         string             `json:"status"`
		CanAnnotate    bool               `json:"canAnnotate"`
		Annotations    []annotationRecord `json:"annotations"`
	}
	if err := c.getJSON(ctx, "/api/assets/"+url.PathEscape(assetID)+"/annotations", query, &out); err != nil {
		return Set{}, err
	}
	set := Set{
		AssetID:        out.AssetID,
		RevisionNumber: out.RevisionNumber,
		RevisionFile:   out.RevisionFile,
		Status:         out.Status,
		CanAnnotate:    out.CanAnnotate,
		Annotations:    make([]Annotation, 0, len(out.Annotations)),
	}
	for _, record := range out.Annotations {
		set.Annotations = append(set.Annotations, record.toAnnotation())
	}
	return set, nil
}

// annotationRecord is the wire shape, kept flat for compatibility with the
// original persisted records (x/y/width/height at top level, optional kind).
type annotationRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind,omitempty"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Path       []Point   `json:"path,omitempty"`
	Comment    string    `json:"comment"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName"`
	Timestamp  time.Time `json:"timestamp"`
}

func (r annotationRecord) toAnnotation() Annotation {
	extent := Size{Width: r.Width, Height: r.Height}
	kind := ResolveKind(r.Kind, extent, r.Path)
	a := Annotation{
		ID:         r.ID,
		Kind:       kind,
		Anchor:     Point{X: r.X, Y: r.Y}.Clamp(),
		Comment:    r.Comment,
		Author:     r.Author,
		AuthorName: r.AuthorName,
		Timestamp:  r.Timestamp,
	}
	switch kind {
	case KindRect:
		a.Extent = extent
	case KindFreehand:
		a.Path = r.Path
	}
	return a
}

// SubmitAnnotation persists a draft with its comment.
func (c *Client) SubmitAnnotation(ctx context.Context, assetID string, draft Draft, comment string) error {
	payload := map[string]any{
		"kind":    string(draft.Kind),
		"x":       draft.Anchor.X,
		"y":       draft.Anchor.Y,
		"width":   draft.Extent.Width,
		"height":  draft.Extent.Height,
		"comment": comment,
	}
	if len(draft.Path) > 0 {
		payload["path"] = draft.Path
	}
	return c.postJSON(ctx, "/api/assets/"+url.PathEscape(assetID)+"/annotations", payload, nil)
}

// GetRevisionHistory lists an asset's uploaded revisions, newest first.
func (c *Client) GetRevisionHistory(ctx context.Context, assetID string) ([]Revision, error) {
	var out struct {
		Revisions []Revision `json:"revisions"`
	}
	err := c.getJSON(ctx, "/api/assets/"+url.PathEscape(assetID)+"/revisions", nil, &out)
	return out.Revisions, err
}

// UploadRevision uploads a new media file as the asset's next revision.
func (c *Client) UploadRevision(ctx context.Context, assetID, filename string, media io.Reader, notes string) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, media); err != nil {
		return err
	}
	if err := form.WriteField("notes", notes); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/assets/"+url.PathEscape(assetID)+"/revisions", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, nil)
}

// GetWorkflowTransitions fetches the asset's state and legal actions.
func (c *Client) GetWorkflowTransitions(ctx context.Context, assetID string) (WorkflowState, error) {
	var out WorkflowState
	err := c.getJSON(ctx, "/api/assets/"+url.PathEscape(assetID)+"/workflow", nil, &out)
	return out, err
}

// ApplyWorkflowTransition invokes a workflow action.
func (c *Client) ApplyWorkflowTransition(ctx context.Context, assetID, action string) error {
	return c.postJSON(ctx, "/api/assets/"+url.PathEscape(assetID)+"/workflow", map[string]any{"action": action}, nil)
}

// SearchUsers backs mention autocomplete.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	values := url.Values{"q": []string{query}}
	var out struct {
		Users []User `json:"users"`
	}
	err := c.getJSON(ctx, "/api/users/search", values, &out)
	return out.Users, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, &NetworkError{Op: method + " " + path, Err: err}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	op := req.Method + " " + req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	var envelope struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	message := envelope.Error
	if message == "" {
		message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, message, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, message, ErrUnauthorized)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %s: %w", op, message, ErrValidation)
	default:
		return &NetworkError{Op: op, Err: fmt.Errorf("%s (status %d)", message, resp.StatusCode)}
	}
}
