// Package jira fetches issues and comments from the Jira Cloud v3 REST
// API and ingests them as documents.
package jira

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/secrets"
)

// ErrNoProjectKey reports a board URL without a /projects/<KEY>/ segment.
// This is a configuration error and fails the sync before any network
// call is made.
var ErrNoProjectKey = errors.New("jira: board URL contains no project key")

const pageSize = 50

// Jira Cloud timestamps look like 2024-03-05T09:41:12.000+0100.
const timeLayout = "2006-01-02T15:04:05.000-0700"

// ExtractProjectKey pulls the project key out of a board URL such as
// https://example.atlassian.net/jira/software/c/projects/CPG/boards/1.
func ExtractProjectKey(boardURL string) (string, error) {
	_, after, found := strings.Cut(boardURL, "/projects/")
	if !found {
		return "", fmt.Errorf("%w: %q", ErrNoProjectKey, boardURL)
	}
	key, _, _ := strings.Cut(after, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrNoProjectKey, boardURL)
	}
	return key, nil
}

// BaseURL reduces a board URL to scheme://host.
func BaseURL(boardURL string) (string, error) {
	u, err := url.Parse(boardURL)
	if err != nil {
		return "", fmt.Errorf("parsing board URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("board URL %q has no scheme or host", boardURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Issue is one search hit with the fields the sync consumes.
type Issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string   `json:"summary"`
		Description *ADFNode `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Created string `json:"created"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

// Comment is one issue comment.
type Comment struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created string   `json:"created"`
	Body    *ADFNode `json:"body"`
}

type searchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	IsLast     *bool   `json:"isLast"`
	Issues     []Issue `json:"issues"`
}

type commentPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	IsLast     *bool     `json:"isLast"`
	Comments   []Comment `json:"comments"`
}

// Client talks to one Jira site with one credential.
type Client struct {
	http    *httpx.Client
	baseURL string
	header  http.Header
}

// NewClient creates a Client for the site hosting boardURL.
func NewClient(hc *httpx.Client, baseURL string, cred secrets.Credential) *Client {
	token := base64.StdEncoding.EncodeToString([]byte(cred.Email + ":" + cred.Reveal()))
	header := http.Header{}
	header.Set("Authorization", "Basic "+token)
	header.Set("Accept", "application/json")
	return &Client{http: hc, baseURL: baseURL, header: header}
}

// SearchIssues returns every issue of the project, walking the offset
// pagination of /rest/api/3/search. Paging stops when the server says
// isLast, when a page comes back short, or when the reported total is
// reached.
func (c *Client) SearchIssues(ctx context.Context, projectKey string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		u := fmt.Sprintf("%s/rest/api/3/search?jql=%s&startAt=%d&maxResults=%d",
			c.baseURL, url.QueryEscape("project="+projectKey), startAt, pageSize)

		var page searchPage
		if err := c.http.GetJSON(ctx, u, c.header, &page); err != nil {
			return nil, fmt.Errorf("searching issues for project %s: %w", projectKey, err)
		}

		issues = append(issues, page.Issues...)
		if done(len(page.Issues), len(issues), page.Total, page.IsLast) {
			return issues, nil
		}
		startAt += len(page.Issues)
	}
}

// ListComments returns every comment of an issue using the same offset
// pagination as SearchIssues.
func (c *Client) ListComments(ctx context.Context, issueKey string) ([]Comment, error) {
	var comments []Comment
	startAt := 0
	for {
		u := fmt.Sprintf("%s/rest/api/3/issue/%s/comment?startAt=%d&maxResults=%d",
			c.baseURL, url.PathEscape(issueKey), startAt, pageSize)

		var page commentPage
		if err := c.http.GetJSON(ctx, u, c.header, &page); err != nil {
			return nil, fmt.Errorf("listing comments of %s: %w", issueKey, err)
		}

		comments = append(comments, page.Comments...)
		if done(len(page.Comments), len(comments), page.Total, page.IsLast) {
			return comments, nil
		}
		startAt += len(page.Comments)
	}
}

// done decides whether pagination has reached the end. An empty page
// always terminates, even when the server claims isLast: false, since
// startAt cannot advance past it. Otherwise isLast is authoritative
// when sent; failing that, a short page or reaching the reported total
// terminates.
func done(pageLen, fetched, total int, isLast *bool) bool {
	if pageLen == 0 {
		return true
	}
	if isLast != nil {
		return *isLast
	}
	if pageLen < pageSize {
		return true
	}
	return fetched >= total
}

// parseTime parses a Jira timestamp, returning nil when absent or
// malformed rather than failing the sync over metadata.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	return &t
}
