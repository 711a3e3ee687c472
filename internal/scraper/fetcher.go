// Package scraper fetches raw page content for a job. One adapter per
// platform variant shares a baseline HTTP fetcher; platform adapters add
// marker validation on top of it.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reactify-service/internal/entity"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes = 8 << 20
)

// Adapter is the common capability every platform variant implements.
type Adapter interface {
	Variant() entity.PlatformVariant
	Fetch(ctx context.Context, url string) (*entity.RawPage, error)
}

// Fetcher performs the HTTP GET shared by all adapters.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves the page and enumerates its asset references.
// Status-code classes map onto the error taxonomy: 401/402/403 and 451
// are access denied, 429 is quota, 5xx and transport failures are
// retryable network errors, anything else non-2xx is unsupported.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*entity.RawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageScrape, entity.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageScrape, entity.ErrNetwork, fmt.Errorf("fetching %s: %w", url, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageScrape, entity.ErrNetwork, fmt.Errorf("reading %s: %w", url, err))
	}

	html := string(body)
	title, assets := pageAssets(html)

	return &entity.RawPage{
		URL:       url,
		Title:     title,
		HTML:      html,
		AssetURLs: assets,
	}, nil
}

func classifyStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized,
		code == http.StatusPaymentRequired,
		code == http.StatusForbidden,
		code == http.StatusUnavailableForLegalReasons:
		return entity.NewPipelineError(entity.StageScrape, entity.ErrAccessDenied,
			fmt.Errorf("status %d for %s", code, url))
	case code == http.StatusTooManyRequests:
		return entity.NewPipelineError(entity.StageScrape, entity.ErrQuotaExceeded,
			fmt.Errorf("status %d for %s", code, url))
	case code >= 500:
		return entity.NewPipelineError(entity.StageScrape, entity.ErrNetwork,
			fmt.Errorf("status %d for %s", code, url))
	default:
		return entity.NewPipelineError(entity.StageScrape, entity.ErrUnsupportedStructure,
			fmt.Errorf("status %d for %s", code, url))
	}
}

// pageAssets extracts the title plus stylesheet, script and image
// references, the same asset classes the download step cares about.
func pageAssets(html string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var assets []string
	seen := map[string]bool{}
	add := func(u string, ok bool) {
		u = strings.TrimSpace(u)
		if !ok || u == "" || seen[u] {
			return
		}
		seen[u] = true
		assets = append(assets, u)
	}

	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.Attr("href"))
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.Attr("src"))
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.Attr("src"))
	})

	return title, assets
}
