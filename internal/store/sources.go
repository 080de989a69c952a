package store

import (
	"context"
	"fmt"
	"time"
)

// JiraIssueRow is the cached representation of one fetched issue.
type JiraIssueRow struct {
	IssueKey    string
	Summary     string
	Description string
	Status      string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
}

// UpsertJiraIssue inserts or refreshes an issue keyed by (sync, key)
// and returns the row id for comment attachment.
func (s *Store) UpsertJiraIssue(ctx context.Context, syncID int64, issue JiraIssueRow) (int64, error) {
	const q = `
		INSERT INTO jira_issues (sync_id, issue_key, summary, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sync_id, issue_key) DO UPDATE SET
			summary = EXCLUDED.summary,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, q, syncID, issue.IssueKey, issue.Summary,
		issue.Description, issue.Status, issue.CreatedAt, issue.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting jira issue %s: %w", issue.IssueKey, err)
	}
	return id, nil
}

// JiraCommentRow is the cached representation of one issue comment.
type JiraCommentRow struct {
	ExternalID string
	Author     string
	Content    string
	CreatedAt  *time.Time
}

// UpsertJiraComment inserts or refreshes a comment keyed by
// (issue, external id).
func (s *Store) UpsertJiraComment(ctx context.Context, issueID int64, comment JiraCommentRow) (int64, error) {
	const q = `
		INSERT INTO jira_comments (issue_id, external_id, author, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (issue_id, external_id) DO UPDATE SET
			author = EXCLUDED.author,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, q, issueID, comment.ExternalID, comment.Author,
		comment.Content, comment.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting jira comment %s: %w", comment.ExternalID, err)
	}
	return id, nil
}

// ConfluencePageRow is the cached representation of one space page.
// Pages are keyed by (sync, title): two pages sharing a title overwrite
// each other, a documented limitation.
type ConfluencePageRow struct {
	Title       string
	Content     string
	URL         string
	LastUpdated string
}

// UpsertConfluencePage inserts or refreshes a page keyed by (sync, title).
func (s *Store) UpsertConfluencePage(ctx context.Context, syncID int64, page ConfluencePageRow) (int64, error) {
	const q = `
		INSERT INTO confluence_pages (sync_id, title, content, url, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sync_id, title) DO UPDATE SET
			content = EXCLUDED.content,
			url = EXCLUDED.url,
			last_updated = EXCLUDED.last_updated
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, q, syncID, page.Title, page.Content,
		page.URL, page.LastUpdated).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting confluence page %q: %w", page.Title, err)
	}
	return id, nil
}

// GitRepoFileRow is the cached representation of one repository file.
type GitRepoFileRow struct {
	Path        string
	SHA         string
	Size        int64
	URL         string
	Content     string
	LastUpdated *time.Time
}

// UpsertGitRepoFile inserts or refreshes a file keyed by (sync, path).
func (s *Store) UpsertGitRepoFile(ctx context.Context, syncID int64, file GitRepoFileRow) error {
	const q = `
		INSERT INTO git_repo_files (sync_id, path, sha, size, url, content, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sync_id, path) DO UPDATE SET
			sha = EXCLUDED.sha,
			size = EXCLUDED.size,
			url = EXCLUDED.url,
			content = EXCLUDED.content,
			last_updated = EXCLUDED.last_updated`

	_, err := s.pool.Exec(ctx, q, syncID, file.Path, file.SHA, file.Size,
		file.URL, file.Content, file.LastUpdated)
	if err != nil {
		return fmt.Errorf("upserting repo file %q: %w", file.Path, err)
	}
	return nil
}
