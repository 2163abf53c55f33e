package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, deactivated_at, created_at, updated_at
		FROM users
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, deactivated_at, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SearchUsers matches the query against display names and email prefixes for
// mention autocompletion. Deactivated accounts are excluded.
func (s *PostgresStore) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, role
		FROM users
		WHERE deactivated_at IS NULL
			AND (display_name ILIKE '%' || $1 || '%' OR email ILIKE $1 || '%')
		ORDER BY display_name ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
			AND u.deactivated_at IS NULL
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, status, due_date, owner_name, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Status, &item.DueDate, &item.Owner, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, due_date, owner_name, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Title, &item.Description, &item.Status, &item.DueDate, &item.Owner, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, item Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, status, due_date, owner_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Title, item.Description, item.Status, item.DueDate, item.Owner)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) ProjectAssets(ctx context.Context, projectID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, campaign, category, status, latest_file, project_id, owner_name, expiry_date, created_at, updated_at
		FROM assets
		WHERE project_id=$1
		ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project assets: %w", err)
	}
	return collectAssets(rows)
}

// ProjectStatusCounts reports how many assets of the project sit in each
// workflow state, for the project progress bar.
func (s *PostgresStore) ProjectStatusCounts(ctx context.Context, projectID string) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM assets WHERE project_id=$1 GROUP BY status ORDER BY status
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project status counts: %w", err)
	}
	return collectStatusCounts(rows)
}

func (s *PostgresStore) InsertAsset(ctx context.Context, item Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, title, campaign, category, status, latest_file, project_id, owner_name, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Title, item.Campaign, item.Category, item.Status, item.LatestFile, item.ProjectID, item.Owner, item.ExpiryDate)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var item Asset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, campaign, category, status, latest_file, project_id, owner_name, expiry_date, created_at, updated_at
		FROM assets
		WHERE id=$1
	`, assetID).Scan(&item.ID, &item.Title, &item.Campaign, &item.Category, &item.Status, &item.LatestFile, &item.ProjectID, &item.Owner, &item.ExpiryDate, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	return item, nil
}

// ListAssets filters by status and campaign when either is non-empty.
func (s *PostgresStore) ListAssets(ctx context.Context, status, campaign string, limit int) ([]Asset, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, campaign, category, status, latest_file, project_id, owner_name, expiry_date, created_at, updated_at
		FROM assets
		WHERE ($1 = '' OR status = $1)
			AND ($2 = '' OR campaign = $2)
		ORDER BY updated_at DESC
		LIMIT $3
	`, status, campaign, limit)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return collectAssets(rows)
}

func (s *PostgresStore) RecentAssets(ctx context.Context, limit int) ([]Asset, error) {
	if limit <= 0 || limit > 50 {
		limit = 8
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, campaign, category, status, latest_file, project_id, owner_name, expiry_date, created_at, updated_at
		FROM assets
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent assets: %w", err)
	}
	return collectAssets(rows)
}

func (s *PostgresStore) UpdateAssetMeta(ctx context.Context, assetID, title, campaign, category string, expiry *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET title=$2, campaign=$3, category=$4, expiry_date=$5, updated_at=NOW()
		WHERE id=$1
	`, assetID, title, campaign, category, expiry)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAssetStatus(ctx context.Context, assetID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE assets SET status=$2, updated_at=NOW() WHERE id=$1
	`, assetID, status)
	if err != nil {
		return fmt.Errorf("update asset status: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountAssetsByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM assets GROUP BY status ORDER BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count assets by status: %w", err)
	}
	return collectStatusCounts(rows)
}

// InsertRevision assigns the next revision number for the asset and mirrors
// the media URL onto assets.latest_file in the same transaction.
func (s *PostgresStore) InsertRevision(ctx context.Context, item Revision) (Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("begin revision tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(number), 0) + 1 FROM revisions WHERE asset_id=$1
	`, item.AssetID).Scan(&item.Number)
	if err != nil {
		return Revision{}, fmt.Errorf("next revision number: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO revisions (id, asset_id, number, media_url, notes, owner_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, item.ID, item.AssetID, item.Number, item.MediaURL, item.Notes, item.Owner).Scan(&item.CreatedAt)
	if err != nil {
		return Revision{}, fmt.Errorf("insert revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE assets SET latest_file=$2, updated_at=NOW() WHERE id=$1
	`, item.AssetID, item.MediaURL); err != nil {
		return Revision{}, fmt.Errorf("update latest file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("commit revision: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListRevisions(ctx context.Context, assetID string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, number, media_url, notes, owner_name, created_at
		FROM revisions
		WHERE asset_id=$1
		ORDER BY number DESC
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]Revision, 0)
	for rows.Next() {
		var item Revision
		if err := rows.Scan(&item.ID, &item.AssetID, &item.Number, &item.MediaURL, &item.Notes, &item.Owner, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, assetID string, number int) (Revision, error) {
	var item Revision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, number, media_url, notes, owner_name, created_at
		FROM revisions
		WHERE asset_id=$1 AND number=$2
	`, assetID, number).Scan(&item.ID, &item.AssetID, &item.Number, &item.MediaURL, &item.Notes, &item.Owner, &item.CreatedAt)
	if err != nil {
		return Revision{}, err
	}
	return item, nil
}

func (s *PostgresStore) LatestRevision(ctx context.Context, assetID string) (Revision, error) {
	var item Revision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, number, media_url, notes, owner_name, created_at
		FROM revisions
		WHERE asset_id=$1
		ORDER BY number DESC
		LIMIT 1
	`, assetID).Scan(&item.ID, &item.AssetID, &item.Number, &item.MediaURL, &item.Notes, &item.Owner, &item.CreatedAt)
	if err != nil {
		return Revision{}, err
	}
	return item, nil
}

func (s *PostgresStore) RecentUploads(ctx context.Context, limit int) ([]UploadEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 8
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.asset_id, a.title, r.media_url, r.notes, r.owner_name, r.created_at
		FROM revisions r
		JOIN assets a ON a.id = r.asset_id
		ORDER BY r.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent uploads: %w", err)
	}
	defer rows.Close()

	items := make([]UploadEntry, 0)
	for rows.Next() {
		var item UploadEntry
		if err := rows.Scan(&item.AssetID, &item.AssetTitle, &item.MediaURL, &item.Notes, &item.Owner, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAnnotation(ctx context.Context, item Annotation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (id, revision_id, kind, x, y, width, height, path, comment, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`, item.ID, item.RevisionID, item.Kind, item.X, item.Y, item.Width, item.Height, item.PathJSON, item.Comment, item.Author)
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnnotationsByRevision(ctx context.Context, revisionID string) ([]Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT an.id, an.revision_id, an.kind, an.x, an.y, an.width, an.height, COALESCE(an.path::text, ''), an.comment, an.author_id, u.display_name, an.created_at
		FROM annotations an
		JOIN users u ON u.id = an.author_id
		WHERE an.revision_id=$1
		ORDER BY an.created_at ASC
	`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	items := make([]Annotation, 0)
	for rows.Next() {
		var item Annotation
		if err := rows.Scan(&item.ID, &item.RevisionID, &item.Kind, &item.X, &item.Y, &item.Width, &item.Height, &item.PathJSON, &item.Comment, &item.Author, &item.AuthorName, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return items, nil
}

// ListTransitionsFrom returns every transition row leaving the given state,
// across all roles. Role filtering is the workflow package's job.
func (s *PostgresStore) ListTransitionsFrom(ctx context.Context, fromState string) ([]WorkflowTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_state, action, next_state, allowed_role, sort_order
		FROM workflow_transitions
		WHERE from_state=$1
		ORDER BY sort_order ASC, action ASC
	`, fromState)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	items := make([]WorkflowTransition, 0)
	for rows.Next() {
		var item WorkflowTransition
		if err := rows.Scan(&item.ID, &item.FromState, &item.Action, &item.NextState, &item.AllowedRole, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, item Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, subject, kind, asset_id, from_user)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, item.ID, item.UserID, item.Subject, item.Kind, item.AssetID, item.FromUser)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, kind, COALESCE(asset_id, ''), from_user, read, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.UserID, &item.Subject, &item.Kind, &item.AssetID, &item.FromUser, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE user_id=$1 AND NOT read`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT read
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread notification count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (totalAssets int, inReview int, approved int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status NOT IN ('Draft', 'Approved', 'Rejected')),
			COUNT(*) FILTER (WHERE status = 'Approved')
		FROM assets
	`).Scan(&totalAssets, &inReview, &approved)
	if err != nil {
		err = fmt.Errorf("summary counts: %w", err)
	}
	return
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func collectAssets(rows *sql.Rows) ([]Asset, error) {
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		var item Asset
		if err := rows.Scan(&item.ID, &item.Title, &item.Campaign, &item.Category, &item.Status, &item.LatestFile, &item.ProjectID, &item.Owner, &item.ExpiryDate, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return items, nil
}

func collectStatusCounts(rows *sql.Rows) ([]StatusCount, error) {
	defer rows.Close()

	items := make([]StatusCount, 0)
	for rows.Next() {
		var item StatusCount
		if err := rows.Scan(&item.Status, &item.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return items, nil
}
