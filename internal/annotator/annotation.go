package annotator

import "time"

// Kind discriminates the three annotation shapes.
type Kind string

const (
	KindPoint    Kind = "point"
	KindRect     Kind = "rect"
	KindFreehand Kind = "freehand"
)

// ResolveKind infers the shape kind for records persisted before the kind
// field existed. The rule is applied exactly once, when a record crosses the
// API boundary into the store: a non-empty path wins, then a non-zero extent,
// then point. A malformed record carrying both a non-zero extent and a path
// degrades to rect rather than failing.
func ResolveKind(declared string, extent Size, path []Point) Kind {
	switch Kind(declared) {
	case KindPoint, KindRect, KindFreehand:
		if declared == string(KindFreehand) && len(path) < 2 {
			// Declared freehand without a usable path renders as a point.
			return KindPoint
		}
		return Kind(declared)
	}
	if extent.Width > 0 || extent.Height > 0 {
		return KindRect
	}
	if len(path) >= 2 {
		return KindFreehand
	}
	return KindPoint
}

// Annotation is one persisted markup record, scoped to an asset revision.
type Annotation struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Anchor     Point     `json:"anchor"`
	Extent     Size      `json:"extent"`
	Path       []Point   `json:"path,omitempty"`
	Comment    string    `json:"comment"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName"`
	Timestamp  time.Time `json:"timestamp"`
}

// Draft is a drawn-but-not-yet-submitted annotation: shape only, no identity.
// The server assigns id, author, and timestamp on submission.
type Draft struct {
	Kind   Kind    `json:"kind"`
	Anchor Point   `json:"anchor"`
	Extent Size    `json:"extent"`
	Path   []Point `json:"path,omitempty"`
}

// Set is the annotation collection for one (asset, revision) pair, together
// with the revision metadata needed to render it.
type Set struct {
	AssetID        string       `json:"assetId"`
	RevisionNumber int          `json:"revisionNumber"`
	RevisionFile   string       `json:"revisionFile"`
	Status         string       `json:"status"`
	CanAnnotate    bool         `json:"canAnnotate"`
	Annotations    []Annotation `json:"annotations"`
}

// Revision is one entry of an asset's upload history.
type Revision struct {
	Number    int       `json:"revisionNumber"`
	MediaURL  string    `json:"mediaUrl"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Owner     string    `json:"owner"`
}

// Asset is the reviewed entity's summary as served by the API.
type Asset struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Campaign string `json:"campaign"`
	Category string `json:"category"`
	Status   string `json:"status"`
	MediaURL string `json:"mediaUrl"`
}

// Transition is one legal workflow action for an asset's current state, as
// supplied by server-side policy. Style is presentation-only and never feeds
// eligibility logic.
type Transition struct {
	Action    string `json:"action"`
	NextState string `json:"nextState"`
	Style     string `json:"style"`
}

// WorkflowState is the asset's current status plus its ordered legal actions.
type WorkflowState struct {
	CurrentState string       `json:"currentState"`
	Transitions  []Transition `json:"transitions"`
}

// User is a mention-autocomplete search result.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}
