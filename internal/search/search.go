package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultAsset   ResultType = "asset"
	ResultProject ResultType = "project"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Status    string     `json:"status"`
	Campaign  string     `json:"campaign,omitempty"`
	MediaURL  string     `json:"media_url,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterStatus   string
	FilterCampaign string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// AssetRecord is the data we index for an asset.
type AssetRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Campaign  string `json:"campaign"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	MediaURL  string `json:"mediaUrl"`
	ProjectID string `json:"projectId"`
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}
