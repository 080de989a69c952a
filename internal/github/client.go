// Package github pulls textual files from a repository branch through
// the GitHub REST API and ingests them as documents.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/secrets"
)

// DefaultAPIBaseURL is the public GitHub REST endpoint.
const DefaultAPIBaseURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// TreeNode is one entry of a recursive tree listing.
type TreeNode struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type treeResponse struct {
	Tree []TreeNode `json:"tree"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type commitResponse struct {
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// Client talks to the GitHub API with one token.
type Client struct {
	http    *httpx.Client
	baseURL string
	header  http.Header
}

// NewClient creates a Client. baseURL is DefaultAPIBaseURL outside of
// tests.
func NewClient(hc *httpx.Client, baseURL string, cred secrets.Credential) *Client {
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("Authorization", "Bearer "+cred.Reveal())
	header.Set("X-GitHub-Api-Version", apiVersion)
	return &Client{http: hc, baseURL: baseURL, header: header}
}

// BranchHead resolves a branch name to its head commit SHA.
func (c *Client) BranchHead(ctx context.Context, fullName, branch string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/git/refs/heads/%s", c.baseURL, fullName, url.PathEscape(branch))
	var ref refResponse
	if err := c.http.GetJSON(ctx, u, c.header, &ref); err != nil {
		return "", fmt.Errorf("resolving branch %s of %s: %w", branch, fullName, err)
	}
	return ref.Object.SHA, nil
}

// Tree lists the full recursive tree at a commit.
func (c *Client) Tree(ctx context.Context, fullName, sha string) ([]TreeNode, error) {
	u := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", c.baseURL, fullName, sha)
	var tree treeResponse
	if err := c.http.GetJSON(ctx, u, c.header, &tree); err != nil {
		return nil, fmt.Errorf("listing tree of %s: %w", fullName, err)
	}
	return tree.Tree, nil
}

// Blob fetches and decodes one blob's bytes.
func (c *Client) Blob(ctx context.Context, fullName, sha string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/git/blobs/%s", c.baseURL, fullName, sha)
	var blob blobResponse
	if err := c.http.GetJSON(ctx, u, c.header, &blob); err != nil {
		return nil, fmt.Errorf("fetching blob %s of %s: %w", sha, fullName, err)
	}
	if blob.Encoding != "base64" {
		return []byte(blob.Content), nil
	}
	// DecodeString tolerates the 60-column line wrapping the API applies.
	raw, err := base64.StdEncoding.DecodeString(blob.Content)
	if err != nil {
		return nil, fmt.Errorf("decoding blob %s of %s: %w", sha, fullName, err)
	}
	return raw, nil
}

// LastCommitDate returns when a path was last touched. Any lookup
// failure falls back to the current time; freshness metadata is not
// worth failing a sync over.
func (c *Client) LastCommitDate(ctx context.Context, fullName, path string) time.Time {
	u := fmt.Sprintf("%s/repos/%s/commits?path=%s&per_page=1", c.baseURL, fullName, url.QueryEscape(path))
	var commits []commitResponse
	if err := c.http.GetJSON(ctx, u, c.header, &commits); err != nil || len(commits) == 0 {
		return time.Now().UTC()
	}
	return commits[0].Commit.Committer.Date
}
