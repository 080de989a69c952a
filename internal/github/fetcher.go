package github

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/secrets"
	"github.com/helpgrid/helpgrid/internal/store"
	"github.com/helpgrid/helpgrid/internal/tenant"
)

// Source is the document source name for GitHub-derived content.
const Source = "github"

// MaxFileBytes caps stored file content; larger blobs are skipped.
const MaxFileBytes = 500_000

// textExts is the allow-list of file extensions treated as text.
var textExts = map[string]bool{
	".md": true, ".mdx": true, ".txt": true,
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".json": true, ".yml": true, ".yaml": true, ".toml": true, ".ini": true,
	".css": true, ".scss": true, ".html": true,
	".c": true, ".cc": true, ".cpp": true, ".h": true,
	".go": true, ".rs": true,
}

func isTextPath(p string) bool {
	return textExts[strings.ToLower(path.Ext(p))]
}

// matchInclude applies the comma-separated include globs of a sync
// config. A blank list accepts everything; a file matching any pattern
// (against its full path or its basename) is accepted. Wildcards are
// fnmatch-style: * spans any run of characters, path separators
// included, so docs/**/*.md covers arbitrarily deep subdirectories.
func matchInclude(p, includeGlobs string) bool {
	patterns := splitGlobs(includeGlobs)
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if globMatch(pattern, p) || globMatch(pattern, path.Base(p)) {
			return true
		}
	}
	return false
}

// globMatch matches name against pattern, where * matches any run of
// characters (including '/') and ? matches exactly one. Iterative with
// single-star backtracking.
func globMatch(pattern, name string) bool {
	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(name) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]):
			pi++
			ni++
		case pi < len(pattern) && pattern[pi] == '*':
			star, mark = pi, ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

func splitGlobs(includeGlobs string) []string {
	var patterns []string
	for _, g := range strings.Split(includeGlobs, ",") {
		if g = strings.TrimSpace(g); g != "" {
			patterns = append(patterns, g)
		}
	}
	return patterns
}

// SourceCache persists fetched files. *store.Store satisfies it.
type SourceCache interface {
	UpsertGitRepoFile(ctx context.Context, syncID int64, file store.GitRepoFileRow) error
}

// DocumentSaver ingests normalized content. *knowledge.Store satisfies it.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, scope tenant.Scope, source, sourceID, content string) ([]knowledge.Document, error)
}

// Fetcher runs one GitHub sync end to end: tree walk, blob fetch,
// cache, ingest.
type Fetcher struct {
	http    *httpx.Client
	baseURL string
	cache   SourceCache
	docs    DocumentSaver
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher against the public API.
func NewFetcher(hc *httpx.Client, cache SourceCache, docs DocumentSaver, logger *slog.Logger) *Fetcher {
	return NewFetcherWithBaseURL(hc, DefaultAPIBaseURL, cache, docs, logger)
}

// NewFetcherWithBaseURL creates a Fetcher against a specific API host.
func NewFetcherWithBaseURL(hc *httpx.Client, baseURL string, cache SourceCache, docs DocumentSaver, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{http: hc, baseURL: baseURL, cache: cache, docs: docs, logger: logger}
}

// Run walks the configured branch's recursive tree and, for every
// allow-listed text blob matching the include globs and size ceiling,
// caches the file and ingests it as a document keyed by path.
func (f *Fetcher) Run(ctx context.Context, cfg *store.SyncConfig, cred secrets.Credential) (items, documents int, err error) {
	client := NewClient(f.http, f.baseURL, cred)

	headSHA, err := client.BranchHead(ctx, cfg.RepoFullName, cfg.Branch)
	if err != nil {
		return 0, 0, err
	}
	tree, err := client.Tree(ctx, cfg.RepoFullName, headSHA)
	if err != nil {
		return 0, 0, err
	}

	for _, node := range tree {
		if node.Type != "blob" || !isTextPath(node.Path) || !matchInclude(node.Path, cfg.IncludeGlobs) {
			continue
		}

		blob, err := client.Blob(ctx, cfg.RepoFullName, node.SHA)
		if err != nil {
			return items, documents, err
		}
		if len(blob) == 0 || len(blob) > MaxFileBytes {
			f.logger.Debug("skipping blob", "path", node.Path, "size", len(blob))
			continue
		}
		text := strings.ToValidUTF8(string(blob), "�")

		lastUpdated := client.LastCommitDate(ctx, cfg.RepoFullName, node.Path)
		htmlURL := fmt.Sprintf("https://github.com/%s/blob/%s/%s", cfg.RepoFullName, cfg.Branch, node.Path)

		err = f.cache.UpsertGitRepoFile(ctx, cfg.ID, store.GitRepoFileRow{
			Path:        node.Path,
			SHA:         node.SHA,
			Size:        int64(len(blob)),
			URL:         htmlURL,
			Content:     text,
			LastUpdated: &lastUpdated,
		})
		if err != nil {
			return items, documents, err
		}

		docs, err := f.docs.SaveDocument(ctx, cfg.Scope, Source, node.Path, text)
		if err != nil {
			return items, documents, err
		}
		documents += len(docs)
		items++
	}

	f.logger.Info("github sync fetched",
		"sync_id", cfg.ID, "repo", cfg.RepoFullName, "branch", cfg.Branch,
		"files", items, "documents", documents)
	return items, documents, nil
}
