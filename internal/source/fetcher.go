package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ingest/internal/config"
	apperrors "github.com/spec-kit/ticket-ingest/pkg/util"
)

// Fetcher retrieves the raw source table. Retry policy belongs to callers.
type Fetcher interface {
	Fetch(ctx context.Context) (*Table, error)
}

// HTTPFetcher downloads the sheet's CSV export over HTTP.
type HTTPFetcher struct {
	sheetURL string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPFetcher constructs a fetcher for the configured sheet URL.
func NewHTTPFetcher(cfg config.SourceConfig, logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		sheetURL: cfg.SheetURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Fetch downloads and parses the CSV export.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*Table, error) {
	if strings.TrimSpace(f.sheetURL) == "" {
		return nil, apperrors.NewFetchError("source sheet URL not configured", nil)
	}

	csvURL := cacheBust(BuildCSVURL(f.sheetURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return nil, apperrors.NewFetchError("build source request", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError("reach source sheet", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.NewFetchError("source sheet access denied; share the sheet publicly or via credentials", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewFetchError(fmt.Sprintf("source sheet returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchError("read source response", err)
	}

	head := strings.ToLower(string(body[:min(len(body), 200)]))
	if strings.Contains(head, "<!doctype html") || strings.Contains(head, "<html") {
		return nil, apperrors.NewFetchError("source URL returned HTML instead of CSV; use an export?format=csv link or publish the sheet", nil)
	}

	table, err := ParseCSV(body)
	if err != nil {
		return nil, apperrors.NewFetchError("parse source CSV", err)
	}

	f.logger.Info("source fetched",
		zap.Int("rows", len(table.Rows)),
		zap.Duration("duration", time.Since(start)),
	)
	return table, nil
}

// BuildCSVURL rewrites a Google Sheets share URL into its CSV export form,
// carrying over the gid from either the query or the fragment. Non-sheet
// URLs and URLs already in export form pass through unchanged.
func BuildCSVURL(raw string) string {
	if !strings.Contains(raw, "docs.google.com/spreadsheets/d/") {
		return raw
	}
	if strings.Contains(raw, "export?format=csv") {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	parts := strings.Split(parsed.Path, "/")
	sheetID := ""
	for i, part := range parts {
		if part == "d" && i+1 < len(parts) {
			sheetID = parts[i+1]
			break
		}
	}
	if sheetID == "" {
		return raw
	}

	gid := parsed.Query().Get("gid")
	if gid == "" && parsed.Fragment != "" {
		if frag, err := url.ParseQuery(parsed.Fragment); err == nil {
			gid = frag.Get("gid")
		}
	}

	csvURL := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", sheetID)
	if gid != "" {
		csvURL += "&gid=" + gid
	}
	return csvURL
}

// cacheBust appends a timestamp parameter so the export endpoint does not
// serve a stale cached CSV.
func cacheBust(u string) string {
	if !strings.Contains(u, "docs.google.com/spreadsheets/d/") || !strings.Contains(u, "export?format=csv") {
		return u
	}
	joiner := "?"
	if strings.Contains(u, "?") {
		joiner = "&"
	}
	return fmt.Sprintf("%s%scachebust=%d", u, joiner, time.Now().Unix())
}
