package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The tsvector is computed per query; the asset and project tables are small
// enough that a stored column is not worth the migration.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const assetVector = "to_tsvector('english', a.title || ' ' || a.campaign || ' ' || a.category)"
const projectVector = "to_tsvector('english', p.title || ' ' || p.description)"

// Search executes a UNION ALL query across assets and projects using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultAsset {
		where := assetVector + " @@ " + tsQuery
		if q.FilterStatus != "" {
			where += fmt.Sprintf(" AND a.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		if q.FilterCampaign != "" {
			where += fmt.Sprintf(" AND a.campaign = $%d", argN)
			args = append(args, q.FilterCampaign)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'asset'::text AS type, a.id, a.title,
				ts_headline('english', a.campaign || ' ' || a.category, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				a.status, a.campaign, a.latest_file AS media_url, COALESCE(a.project_id, '') AS project_id,
				ts_rank(%s, %s) AS rank
			FROM assets a
			WHERE %s`, tsQuery, assetVector, tsQuery, where))
	}

	if q.FilterType == "" || q.FilterType == ResultProject {
		where := projectVector + " @@ " + tsQuery
		if q.FilterStatus != "" {
			where += fmt.Sprintf(" AND p.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.title,
				ts_headline('english', p.description, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.status, ''::text AS campaign, ''::text AS media_url, ''::text AS project_id,
				ts_rank(%s, %s) AS rank
			FROM projects p
			WHERE %s`, tsQuery, projectVector, tsQuery, where))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status, campaign, media_url, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status, &r.Campaign, &r.MediaURL, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]AssetRecord, []ProjectRecord, error) {
	assetRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, campaign, category, status, latest_file, COALESCE(project_id, '')
		FROM assets
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load assets: %w", err)
	}
	defer assetRows.Close()

	assets := make([]AssetRecord, 0)
	for assetRows.Next() {
		var a AssetRecord
		if err := assetRows.Scan(&a.ID, &a.Title, &a.Campaign, &a.Category, &a.Status, &a.MediaURL, &a.ProjectID); err != nil {
			return nil, nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := assetRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate assets: %w", err)
	}

	projectRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, status
		FROM projects
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var pr ProjectRecord
		if err := projectRows.Scan(&pr.ID, &pr.Title, &pr.Description, &pr.Status); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	return assets, projects, nil
}
