package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"offmall_watcher/models"
)

const (
	productBaseURL = "https://netmall.hardoff.co.jp/product/"

	// How many ancestors to climb from a product link looking for the card
	// container.
	cardSearchDepth = 8

	// Card text must carry a price marker and at least this many characters,
	// otherwise the ancestor is too small to be the card.
	cardMinRunes = 30

	maxNameRunes     = 200
	maxCardNameRunes = 80
)

var (
	productHrefRe = regexp.MustCompile(`/product/(\d+)`)
	priceRe       = regexp.MustCompile(`([\d,]+)\s*円`)

	// Phrases that appear inside product links but are not part of the name:
	// price tokens, the new-arrival badge, junk markers and rank grades.
	linkNoiseRe = regexp.MustCompile(`[\d,]+円|新着|ジャンク|ランク[A-Z]`)

	// Separators used to cut card text into name candidates.
	cardSplitRe = regexp.MustCompile(`[\d,]+円|\d+件|新着|ジャンク品?|ランク[A-Z]`)
)

// ParseListingPage extracts product stubs from one category listing page. The
// markup is foreign and uncontrolled, so every field has a fallback; a page
// that matches nothing yields an empty slice, never an error.
func ParseListingPage(htmlBody string) []models.ListingStub {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var stubs []models.ListingStub
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		m := productHrefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}

		id := m[1]
		if seen[id] {
			// The same product is often linked twice per card; the first
			// anchor wins.
			return
		}
		seen[id] = true

		cardText := findCardText(link)

		stubs = append(stubs, models.ListingStub{
			ExternalID: id,
			URL:        productBaseURL + id + "/",
			Name:       extractName(link, cardText, id),
			Price:      extractPrice(cardText),
			ImageURL:   extractImageURL(link),
		})
	})

	return stubs
}

// findCardText climbs the link's ancestor chain looking for the first element
// that reads like a product card: its flattened text mentions a yen amount and
// is long enough to hold more than just the price.
func findCardText(link *goquery.Selection) string {
	node := link
	for i := 0; i < cardSearchDepth; i++ {
		parent := node.Parent()
		if parent.Length() == 0 {
			break
		}
		node = parent

		text := flattenText(node)
		if strings.Contains(text, "円") && utf8.RuneCountInString(text) > cardMinRunes {
			return text
		}
	}
	return ""
}

// flattenText joins every text node under the selection with single spaces,
// the way the rendered card reads.
func flattenText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if fields := strings.Fields(n.Data); len(fields) > 0 {
				parts = append(parts, strings.Join(fields, " "))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func extractPrice(cardText string) string {
	m := priceRe.FindStringSubmatch(cardText)
	if m == nil {
		return ""
	}
	return m[1] + "円"
}

// nameExtractors are tried in order; the first non-empty result wins.
var nameExtractors = []func(link *goquery.Selection, cardText, id string) string{
	nameFromLinkText,
	nameFromImageAlt,
	nameFromTitleAttr,
	nameFromCardText,
	namePlaceholder,
}

func extractName(link *goquery.Selection, cardText, id string) string {
	for _, extract := range nameExtractors {
		if name := extract(link, cardText, id); name != "" {
			return truncateRunes(name, maxNameRunes)
		}
	}
	return ""
}

func nameFromLinkText(link *goquery.Selection, _, _ string) string {
	cleaned := strings.TrimSpace(linkNoiseRe.ReplaceAllString(flattenText(link), ""))
	if utf8.RuneCountInString(cleaned) > 2 {
		return cleaned
	}
	return ""
}

func nameFromImageAlt(link *goquery.Selection, _, _ string) string {
	alt, _ := link.Find("img").First().Attr("alt")
	return strings.TrimSpace(alt)
}

func nameFromTitleAttr(link *goquery.Selection, _, _ string) string {
	title, _ := link.Attr("title")
	return strings.TrimSpace(title)
}

// nameFromCardText falls back to the longest word-like segment of the card
// text once price tokens, hit counts and grade markers are cut out.
func nameFromCardText(_ *goquery.Selection, cardText, _ string) string {
	if cardText == "" {
		return ""
	}

	var best string
	bestLen := 0
	for _, part := range cardSplitRe.Split(cardText, -1) {
		part = strings.TrimSpace(part)
		n := utf8.RuneCountInString(part)
		if n > 3 && n > bestLen {
			best = part
			bestLen = n
		}
	}
	if best == "" {
		return ""
	}
	return truncateRunes(best, maxCardNameRunes)
}

func namePlaceholder(_ *goquery.Selection, _, id string) string {
	return "商品ID: " + id
}

func extractImageURL(link *goquery.Selection) string {
	img := link.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	if src, ok := img.Attr("src"); ok && src != "" {
		return src
	}
	// Lazy-loaded images keep the real source here.
	if src, ok := img.Attr("data-src"); ok {
		return src
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
