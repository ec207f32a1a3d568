package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Listing pages are well under this; anything bigger is not worth parsing.
const maxBodyBytes = 2 << 20

// Clients bundles the HTTP clients used against the marketplace. Listing-page
// fetches get a longer budget than the lightweight detail-page probes.
type Clients struct {
	Listing *http.Client
	Detail  *http.Client
}

func NewClients() *Clients {
	return &Clients{
		Listing: &http.Client{Timeout: 30 * time.Second},
		Detail:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetcher performs rate-limited GETs with a fixed browser User-Agent. All
// outbound traffic to the marketplace shares one limiter so the scan and check
// loops cannot gang up on the site.
type Fetcher struct {
	clients   *Clients
	limiter   *rate.Limiter
	userAgent string
}

func NewFetcher(clients *Clients, userAgent string) *Fetcher {
	return &Fetcher{
		clients:   clients,
		limiter:   rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		userAgent: userAgent,
	}
}

// ListingPage fetches a category listing page.
func (f *Fetcher) ListingPage(ctx context.Context, url string) (string, error) {
	return f.get(ctx, f.clients.Listing, url)
}

// DetailPage fetches a product detail page.
func (f *Fetcher) DetailPage(ctx context.Context, url string) (string, error) {
	return f.get(ctx, f.clients.Detail, url)
}

func (f *Fetcher) get(ctx context.Context, client *http.Client, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
