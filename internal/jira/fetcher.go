package jira

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/secrets"
	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

// Document source names for Jira-derived content.
const (
	SourceIssue   = "jira_issue"
	SourceComment = "jira_comment"
)

// Sentinel stored for comments whose ADF body carries no extractable
// text (pure media, empty doc). Such comments never abort a sync.
const unknownContent = "Unknown content"

// SourceCache persists fetched issues and comments. *store.Store
// satisfies it.
type SourceCache interface {
	UpsertJiraIssue(ctx context.Context, syncID int64, issue store.JiraIssueRow) (int64, error)
	UpsertJiraComment(ctx context.Context, issueID int64, comment store.JiraCommentRow) (int64, error)
}

// DocumentSaver ingests normalized content. *knowledge.Store satisfies it.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, scope tenant.Scope, source, sourceID, content string) ([]knowledge.Document, error)
}

// Fetcher runs one Jira sync end to end: fetch, cache, ingest.
type Fetcher struct {
	http   *httpx.Client
	cache  SourceCache
	docs   DocumentSaver
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(hc *httpx.Client, cache SourceCache, docs DocumentSaver, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{http: hc, cache: cache, docs: docs, logger: logger}
}

// Run fetches every issue of the configured board's project, upserts
// issues and comments into the source cache, and ingests one document
// per issue plus one per comment. It returns the issue count and the
// number of chunk documents written.
func (f *Fetcher) Run(ctx context.Context, cfg *store.SyncConfig, cred secrets.Credential) (items, documents int, err error) {
	projectKey, err := ExtractProjectKey(cfg.BoardURL)
	if err != nil {
		return 0, 0, err
	}
	baseURL, err := BaseURL(cfg.BoardURL)
	if err != nil {
		return 0, 0, err
	}

	client := NewClient(f.http, baseURL, cred)
	issues, err := client.SearchIssues(ctx, projectKey)
	if err != nil {
		return 0, 0, err
	}

	for _, issue := range issues {
		issueID, err := f.cache.UpsertJiraIssue(ctx, cfg.ID, store.JiraIssueRow{
			IssueKey:    issue.Key,
			Summary:     issue.Fields.Summary,
			Description: ExtractText(issue.Fields.Description),
			Status:      issue.Fields.Status.Name,
			CreatedAt:   parseTime(issue.Fields.Created),
			UpdatedAt:   parseTime(issue.Fields.Updated),
		})
		if err != nil {
			return items, documents, err
		}

		content := fmt.Sprintf("Issue: %s\n\nDescription: %s",
			issue.Fields.Summary, ExtractText(issue.Fields.Description))
		docs, err := f.docs.SaveDocument(ctx, cfg.Scope, SourceIssue, issue.Key, content)
		if err != nil {
			return items, documents, err
		}
		documents += len(docs)

		comments, err := client.ListComments(ctx, issue.Key)
		if err != nil {
			return items, documents, err
		}
		for _, comment := range comments {
			body := ExtractText(comment.Body)
			if body == "" {
				body = unknownContent
			}

			commentID, err := f.cache.UpsertJiraComment(ctx, issueID, store.JiraCommentRow{
				ExternalID: comment.ID,
				Author:     comment.Author.DisplayName,
				Content:    body,
				CreatedAt:  parseTime(comment.Created),
			})
			if err != nil {
				return items, documents, err
			}

			commentContent := fmt.Sprintf("Comment by %s on %s:\n%s",
				comment.Author.DisplayName, comment.Created, body)
			docs, err := f.docs.SaveDocument(ctx, cfg.Scope, SourceComment,
				fmt.Sprintf("%s_comment_%d", issue.Key, commentID), commentContent)
			if err != nil {
				return items, documents, err
			}
			documents += len(docs)
		}

		items++
	}

	f.logger.Info("jira sync fetched",
		"sync_id", cfg.ID, "project", projectKey,
		"issues", items, "documents", documents)
	return items, documents, nil
}
