// Package confluence fetches space pages through the Confluence Cloud
// content-search API and ingests them as documents.
package confluence

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/secrets"
)

// ErrNoSpaceKey reports a space URL without a /spaces/<KEY>/ segment.
var ErrNoSpaceKey = errors.New("confluence: space URL contains no space key")

const pageLimit = 100

// ExtractSpaceKey pulls the space key out of a URL such as
// https://acme.atlassian.net/wiki/spaces/ABC/pages/1234.
func ExtractSpaceKey(spaceURL string) (string, error) {
	_, after, found := strings.Cut(spaceURL, "/spaces/")
	if !found {
		return "", fmt.Errorf("%w: %q", ErrNoSpaceKey, spaceURL)
	}
	key, _, _ := strings.Cut(after, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrNoSpaceKey, spaceURL)
	}
	return key, nil
}

// BaseURL reduces a space URL to scheme://host.
func BaseURL(spaceURL string) (string, error) {
	u, err := url.Parse(spaceURL)
	if err != nil {
		return "", fmt.Errorf("parsing space URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("space URL %q has no scheme or host", spaceURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Page is one content-search hit with the fields the sync consumes.
type Page struct {
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type searchPage struct {
	Results []Page `json:"results"`
	Start   *int   `json:"start"`
	Limit   *int   `json:"limit"`
	Size    *int   `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// Client talks to one Confluence site with one credential.
type Client struct {
	http    *httpx.Client
	baseURL string
	header  http.Header
}

// NewClient creates a Client for the site hosting the space.
func NewClient(hc *httpx.Client, baseURL string, cred secrets.Credential) *Client {
	token := base64.StdEncoding.EncodeToString([]byte(cred.Email + ":" + cred.Reveal()))
	header := http.Header{}
	header.Set("Authorization", "Basic "+token)
	header.Set("Accept", "application/json")
	return &Client{http: hc, baseURL: baseURL, header: header}
}

// SearchPages returns every page of the space. The server's _links.next
// cursor is followed when present; otherwise paging falls back to
// start/limit offset math. An empty batch always terminates.
func (c *Client) SearchPages(ctx context.Context, spaceKey string) ([]Page, error) {
	cql := fmt.Sprintf(`space="%s"`, spaceKey)
	next := c.searchURL(cql, pageLimit, -1)

	var pages []Page
	for next != "" {
		var batch searchPage
		if err := c.http.GetJSON(ctx, next, c.header, &batch); err != nil {
			return nil, fmt.Errorf("searching pages of space %s: %w", spaceKey, err)
		}
		if len(batch.Results) == 0 {
			break
		}
		pages = append(pages, batch.Results...)
		next = c.nextURL(cql, &batch)
	}
	return pages, nil
}

func (c *Client) searchURL(cql string, limit, start int) string {
	q := url.Values{}
	q.Set("cql", cql)
	q.Set("expand", "body.storage,version")
	q.Set("limit", fmt.Sprint(limit))
	if start >= 0 {
		q.Set("start", fmt.Sprint(start))
	}
	return c.baseURL + "/wiki/rest/api/content/search?" + q.Encode()
}

// nextURL resolves the follow-up request URL, or "" at the end.
// Relative next links are normalized against <base>/wiki, the prefix
// Confluence Cloud omits from them.
func (c *Client) nextURL(cql string, batch *searchPage) string {
	if link := batch.Links.Next; link != "" {
		if strings.HasPrefix(link, "http") {
			return link
		}
		if strings.HasPrefix(link, "/wiki") {
			return c.baseURL + link
		}
		return c.baseURL + "/wiki" + link
	}

	if batch.Start == nil || batch.Limit == nil {
		return ""
	}
	nextStart := *batch.Start + *batch.Limit
	if batch.Size != nil && nextStart >= *batch.Size {
		return ""
	}
	return c.searchURL(cql, *batch.Limit, nextStart)
}

// PageURL builds the browser URL of a page from its webui link.
func (c *Client) PageURL(p Page) string {
	return c.baseURL + "/wiki" + p.Links.WebUI
}
