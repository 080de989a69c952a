package confluence

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

// Source is the document source name for Confluence-derived content.
const Source = "confluence"

// SourceCache persists fetched pages. *store.Store satisfies it.
type SourceCache interface {
	UpsertConfluencePage(ctx context.Context, syncID int64, page store.ConfluencePageRow) (int64, error)
}

// DocumentSaver ingests normalized content. *knowledge.Store satisfies it.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, scope tenant.Scope, source, sourceID, content string) ([]knowledge.Document, error)
}

// Fetcher runs one Confluence sync end to end: fetch, cache, ingest.
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

// Run fetches every page of the configured space, upserts the page
// cache, and ingests one document per page keyed by the cache row id.
// Pages are keyed by title within a sync, so two pages sharing a title
// collapse into one row; the last one fetched wins.
func (f *Fetcher) Run(ctx context.Context, cfg *store.SyncConfig, cred secrets.Credential) (items, documents int, err error) {
	spaceKey, err := ExtractSpaceKey(cfg.SpaceURL)
	if err != nil {
		return 0, 0, err
	}
	baseURL, err := BaseURL(cfg.SpaceURL)
	if err != nil {
		return 0, 0, err
	}

	client := NewClient(f.http, baseURL, cred)
	pages, err := client.SearchPages(ctx, spaceKey)
	if err != nil {
		return 0, 0, err
	}

	for _, page := range pages {
		pageID, err := f.cache.UpsertConfluencePage(ctx, cfg.ID, store.ConfluencePageRow{
			Title:       page.Title,
			Content:     page.Body.Storage.Value,
			URL:         client.PageURL(page),
			LastUpdated: page.Version.When,
		})
		if err != nil {
			return items, documents, err
		}

		docs, err := f.docs.SaveDocument(ctx, cfg.Scope, Source,
			fmt.Sprint(pageID), page.Body.Storage.Value)
		if err != nil {
			return items, documents, err
		}
		documents += len(docs)
		items++
	}

	f.logger.Info("confluence sync fetched",
		"sync_id", cfg.ID, "space", spaceKey,
		"pages", items, "documents", documents)
	return items, documents, nil
}
