package scraper

import (
	"context"
	"strings"

	"offmall_watcher/httputil"
)

// soldTokens mark a product page as sold, matched against the lower-cased
// body. "sold" covers the SOLD OUT ribbon; the rest are the site's Japanese
// phrasings.
var soldTokens = []string{"sold", "売り切れ", "販売終了"}

// SoldProbe decides whether a product detail page reports the item as sold.
type SoldProbe struct {
	fetcher *httputil.Fetcher
}

func NewSoldProbe(fetcher *httputil.Fetcher) *SoldProbe {
	return &SoldProbe{fetcher: fetcher}
}

// IsSold fetches the product page and scans it for sold-out markers. A fetch
// failure reports not-sold: the listing stays active and is probed again on
// the next pass.
func (p *SoldProbe) IsSold(ctx context.Context, url string) (bool, error) {
	body, err := p.fetcher.DetailPage(ctx, url)
	if err != nil {
		return false, err
	}

	lower := strings.ToLower(body)
	for _, token := range soldTokens {
		if strings.Contains(lower, token) {
			return true, nil
		}
	}
	return false, nil
}
