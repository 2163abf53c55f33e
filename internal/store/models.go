package store

import "time"

type User struct {
	ID              string
	DisplayName     string
	Email           string
	PasswordHash    string
	Role            string
	DeactivatedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Project struct {
	ID          string
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
	Owner       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Asset is one marketing image/video tracked through review. Status is the
// workflow state label; LatestFile mirrors the newest revision's media URL so
// list views avoid a join.
type Asset struct {
	ID         string
	Title      string
	Campaign   string
	Category   string
	Status     string
	LatestFile string
	ProjectID  *string
	Owner      string
	ExpiryDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Revision is one uploaded version of an asset's media. Numbers start at 1;
// only the highest-numbered revision accepts new annotations.
type Revision struct {
	ID        string
	AssetID   string
	Number    int
	MediaURL  string
	Notes     string
	Owner     string
	CreatedAt time.Time
}

// Annotation is one markup record on a revision. PathJSON holds the freehand
// point sequence; empty for point and rect annotations.
type Annotation struct {
	ID         string
	RevisionID string
	Kind       string
	X          float64
	Y          float64
	Width      float64
	Height     float64
	PathJSON   string
	Comment    string
	Author     string
	AuthorName string
	CreatedAt  time.Time
}

// WorkflowTransition is one row of the data-driven state machine: from a
// state, an action leads to the next state, allowed for one role. The same
// (state, action) pair may repeat across roles.
type WorkflowTransition struct {
	ID          string
	FromState   string
	Action      string
	NextState   string
	AllowedRole string
	SortOrder   int
}

type Notification struct {
	ID        string
	UserID    string
	Subject   string
	Kind      string
	AssetID   string
	FromUser  string
	Read      bool
	CreatedAt time.Time
}

type StatusCount struct {
	Status string
	Count  int
}

// UploadEntry is one row of the recent-uploads dashboard feed.
type UploadEntry struct {
	AssetID    string
	AssetTitle string
	MediaURL   string
	Notes      string
	Owner      string
	CreatedAt  time.Time
}
